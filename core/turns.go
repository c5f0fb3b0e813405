package session

import (
	"strings"

	"github.com/koscakluka/ema-live/core/conversations"
)

// turnAggregator joins transcript fragments per role until the service
// signals the end of a turn. Owned by the inbound loop.
type turnAggregator struct {
	user      strings.Builder
	assistant strings.Builder
}

func (t *turnAggregator) buffer(role conversations.Role) *strings.Builder {
	switch role {
	case conversations.RoleUser:
		return &t.user
	case conversations.RoleAssistant:
		return &t.assistant
	}
	return nil
}

func (t *turnAggregator) Append(role conversations.Role, delta string) {
	if buffer := t.buffer(role); buffer != nil {
		buffer.WriteString(delta)
	}
}

func (t *turnAggregator) Pending(role conversations.Role) string {
	if buffer := t.buffer(role); buffer != nil {
		return buffer.String()
	}
	return ""
}

// Complete flushes every non-empty buffer as one message, user first.
func (t *turnAggregator) Complete() []conversations.Message {
	var messages []conversations.Message
	for _, role := range []conversations.Role{conversations.RoleUser, conversations.RoleAssistant} {
		buffer := t.buffer(role)
		if buffer.Len() == 0 {
			continue
		}
		messages = append(messages, conversations.NewMessage(role, buffer.String()))
		buffer.Reset()
	}
	return messages
}

// Interrupt discards the assistant's partial utterance and returns it. The
// user's buffer is left alone: the interruption is the user speaking.
func (t *turnAggregator) Interrupt() string {
	discarded := t.assistant.String()
	t.assistant.Reset()
	return discarded
}
