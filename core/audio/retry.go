package audio

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StreamRetry paces a device loop whose reads or writes keep failing, for
// example after the device was unplugged. Only the first failure of a streak
// is logged.
type StreamRetry struct {
	name    string
	backoff *backoff.ExponentialBackOff
	streak  int
}

func NewStreamRetry(name string, initial, maxInterval time.Duration) *StreamRetry {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Reset()
	return &StreamRetry{name: name, backoff: b}
}

// Failed records err and waits before the next attempt. It returns false if
// ctx ended while waiting.
func (r *StreamRetry) Failed(ctx context.Context, err error) bool {
	r.streak++
	if r.streak == 1 {
		logger.Warn("device stream failing", "stream", r.name, "error", err)
	}

	timer := time.NewTimer(r.backoff.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Succeeded ends a failure streak.
func (r *StreamRetry) Succeeded() {
	if r.streak == 0 {
		return
	}
	logger.Info("device stream recovered", "stream", r.name, "failures", r.streak)
	r.streak = 0
	r.backoff.Reset()
}

func (r *StreamRetry) Streak() int { return r.streak }
