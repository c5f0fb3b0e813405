package realtime

import (
	"context"
	"errors"
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrGoAway        = errors.New("service requested disconnect")
)

// Channel is an open, set up connection to the service.
//
// Messages delivers inbound frames strictly in arrival order and is closed
// once the connection ends. Err reports why it ended; it is nil after Close.
type Channel interface {
	Send(ctx context.Context, msg ClientMessage) error
	Messages() <-chan ServerMessage
	Err() error
	Close() error
}

// Dialer opens channels. The credential is passed through untouched.
type Dialer interface {
	Open(ctx context.Context, credential string, opts ...OpenOption) (Channel, error)
}
