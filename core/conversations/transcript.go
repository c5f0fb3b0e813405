package conversations

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one discrete line of the conversation as shown to the user.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, text string) Message {
	return Message{ID: uuid.NewString(), Role: role, Text: text, Timestamp: time.Now()}
}

// Transcript is the finished record of one connection.
type Transcript struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Messages  []Message `json:"messages"`
}

// Text renders the transcript as "role: text" lines.
func (t Transcript) Text() string {
	var b strings.Builder
	for _, msg := range t.Messages {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func (t Transcript) IsEmpty() bool {
	for _, msg := range t.Messages {
		if msg.Role != RoleSystem {
			return false
		}
	}
	return true
}

// Log accumulates messages for a single connection. It is safe for
// concurrent use.
type Log struct {
	mu         sync.Mutex
	transcript Transcript
}

func NewLog(sessionID string) *Log {
	return &Log{transcript: Transcript{SessionID: sessionID, StartedAt: time.Now()}}
}

func (l *Log) Append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transcript.Messages = append(l.transcript.Messages, msg)
}

// Snapshot returns a copy that is unaffected by later appends.
func (l *Log) Snapshot() Transcript {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.transcript
	snapshot.Messages = nil
	if err := copier.Copy(&snapshot.Messages, l.transcript.Messages); err != nil {
		snapshot.Messages = append([]Message(nil), l.transcript.Messages...)
	}
	return snapshot
}

// Finish stamps the end time and returns the final snapshot.
func (l *Log) Finish() Transcript {
	l.mu.Lock()
	if l.transcript.EndedAt.IsZero() {
		l.transcript.EndedAt = time.Now()
	}
	l.mu.Unlock()
	return l.Snapshot()
}
