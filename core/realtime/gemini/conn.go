package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/realtime"
)

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	messages chan realtime.ServerMessage
	closed   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:       ws,
		messages: make(chan realtime.ServerMessage, 64),
		closed:   make(chan struct{}),
	}
}

func (c *conn) Messages() <-chan realtime.ServerMessage {
	return c.messages
}

func (c *conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *conn) Send(ctx context.Context, msg realtime.ClientMessage) error {
	select {
	case <-c.closed:
		return realtime.ErrChannelClosed
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write to realtime socket: %w", err)
	}
	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage, closeMsg)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

// shutdown closes the channel without a close handshake, for when the server
// already announced it is going away.
func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *conn) fail(err error) {
	if c.isClosed() {
		return
	}

	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *conn) readLoop() {
	defer close(c.messages)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.fail(realtime.ErrChannelClosed)
			} else {
				c.fail(fmt.Errorf("failed to read from realtime socket: %w", err))
			}
			return
		}

		var msg realtime.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("failed to unmarshal server message", "error", err)
			continue
		}

		if msg.GoAway != nil {
			c.fail(fmt.Errorf("%w (time left %s)", realtime.ErrGoAway, msg.GoAway.TimeLeft))
			c.shutdown()
			return
		}

		select {
		case c.messages <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *conn) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}
