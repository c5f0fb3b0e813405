package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/koscakluka/ema-live/core/archive"
	"github.com/koscakluka/ema-live/core/conversations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 10 * time.Second

var ErrUnexpectedStatus = errors.New("unexpected webhook status")

// Archiver posts each transcript as JSON to a URL.
type Archiver struct {
	url    string
	token  string
	client *http.Client
}

type Option func(*Archiver)

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(a *Archiver) {
		a.token = token
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Archiver) {
		a.client = client
	}
}

func New(url string, opts ...Option) *Archiver {
	a := &Archiver{
		url: url,
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(string, *http.Request) string {
					return "post transcript webhook"
				}),
			),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archiver) Archive(ctx context.Context, transcript conversations.Transcript) error {
	if err := archive.Validate(transcript); err != nil {
		return err
	}

	body, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
