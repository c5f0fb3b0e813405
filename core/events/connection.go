package events

import "github.com/koscakluka/ema-live/core/conversations"

const (
	// KindStateChanged identifies a session connection state transition.
	KindStateChanged Kind = "connection.state_changed"
	// KindSystemMessage identifies a human-readable notice about the connection.
	KindSystemMessage Kind = "connection.system_message"
)

// StateChanged reports a transition between two connection states. Err is set
// when the transition was caused by a failure.
type StateChanged struct {
	Base
	From string
	To   string
	Err  error
}

// NewStateChanged creates a connection state changed event.
func NewStateChanged(from, to string, err error) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to, Err: err}
}

// SystemMessage carries a system line for the transcript display.
type SystemMessage struct {
	Base
	Message conversations.Message
}

// NewSystemMessage creates a system message event.
func NewSystemMessage(message conversations.Message) SystemMessage {
	return SystemMessage{Base: NewBase(KindSystemMessage), Message: message}
}
