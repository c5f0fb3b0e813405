package gemini

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel    = "models/gemini-2.0-flash-live-001"

	// maxMessageSize is the largest inbound frame accepted (16MB).
	maxMessageSize = 16 * 1024 * 1024

	defaultDialTimeout  = 45 * time.Second
	defaultSetupTimeout = 15 * time.Second
	defaultHeartbeat    = 20 * time.Second
	writeWait           = 10 * time.Second
)

var ErrSetupFailed = errors.New("session setup failed")

// Client opens realtime channels to the Gemini Live API.
type Client struct {
	endpoint     string
	dialTimeout  time.Duration
	setupTimeout time.Duration
	heartbeat    time.Duration
}

type ClientOption func(*Client)

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithSetupTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.setupTimeout = timeout
	}
}

// WithHeartbeat sets the websocket ping interval; zero disables pings.
func WithHeartbeat(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.heartbeat = interval
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		endpoint:     DefaultEndpoint,
		dialTimeout:  defaultDialTimeout,
		setupTimeout: defaultSetupTimeout,
		heartbeat:    defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Open dials the service, sends the setup message and waits for the setup to
// be acknowledged before returning.
func (c *Client) Open(ctx context.Context, credential string, opts ...realtime.OpenOption) (realtime.Channel, error) {
	ctx, span := tracer.Start(ctx, "open realtime channel")
	defer span.End()

	options := realtime.NewOpenOptions(opts...)
	if options.Model == "" {
		options.Model = DefaultModel
	}
	if !strings.HasPrefix(options.Model, "models/") {
		options.Model = "models/" + options.Model
	}
	span.SetAttributes(
		attribute.String("request.model", options.Model),
		attribute.String("request.url", c.endpoint),
	)

	ws, err := c.dial(ctx, credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := c.setup(ctx, ws, options); err != nil {
		_ = ws.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.AddEvent("setup complete")

	conn := newConn(ws)
	go conn.readLoop()
	if c.heartbeat > 0 {
		go conn.heartbeatLoop(c.heartbeat)
	}

	return conn, nil
}

func (c *Client) dial(ctx context.Context, credential string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	headers := http.Header{}
	headers.Set("x-goog-api-key", credential)

	ws, resp, err := dialer.DialContext(ctx, c.endpoint, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open realtime socket (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open realtime socket: %w", err)
	}

	ws.SetReadLimit(maxMessageSize)
	return ws, nil
}

// setup sends the setup message and waits for its acknowledgement. Cancelling
// ctx expires the socket deadlines so a pending read or write returns at once.
func (c *Client) setup(ctx context.Context, ws *websocket.Conn, options realtime.OpenOptions) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			_ = ws.SetReadDeadline(time.Now())
			_ = ws.SetWriteDeadline(time.Now())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		_ = ws.SetReadDeadline(time.Time{})
		_ = ws.SetWriteDeadline(time.Time{})
	}()

	// Deadlines are set before ctx is checked so a cancellation racing with
	// them is never overwritten.
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	if err := ws.WriteJSON(options.Setup()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrSetupFailed, ctxErr)
		}
		return fmt.Errorf("failed to send setup: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(c.setupTimeout))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrSetupFailed, ctxErr)
			}
			return fmt.Errorf("%w: %w", ErrSetupFailed, err)
		}

		var msg realtime.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("failed to unmarshal setup response", "error", err)
			continue
		}
		if msg.SetupComplete != nil {
			return nil
		}
		if msg.GoAway != nil {
			return fmt.Errorf("%w: %w", ErrSetupFailed, realtime.ErrGoAway)
		}
	}
}
