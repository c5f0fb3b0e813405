package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// resourceStage orders teardown. Lower stages are released first.
type resourceStage int

const (
	// stageProducers covers everything that produces outbound data or
	// touches playback state: capture callbacks, the video ticker and the
	// session loops.
	stageProducers resourceStage = iota
	stageChannel
	stageDevices
	stageGraph
)

func (s resourceStage) String() string {
	switch s {
	case stageProducers:
		return "producers"
	case stageChannel:
		return "channel"
	case stageDevices:
		return "devices"
	case stageGraph:
		return "graph"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

var errResourcesReleased = errors.New("resources already released")

type releaseFunc func(context.Context) error

type resource struct {
	name    string
	stage   resourceStage
	release releaseFunc
}

// resources holds everything a single connection acquired. Each release runs
// in its own recovered scope so that one failing step never skips the rest.
type resources struct {
	mu       sync.Mutex
	held     []resource
	released bool
}

func newResources() *resources {
	return &resources{}
}

// Acquire registers a release for later. If teardown already happened the
// release runs immediately and errResourcesReleased is returned, so late
// acquisitions never leak.
func (r *resources) Acquire(ctx context.Context, stage resourceStage, name string, release releaseFunc) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		runRelease(ctx, resource{name: name, stage: stage, release: release})
		return fmt.Errorf("%w: %s", errResourcesReleased, name)
	}
	r.held = append(r.held, resource{name: name, stage: stage, release: release})
	r.mu.Unlock()
	return nil
}

// Release runs and forgets a single resource ahead of teardown. Unknown
// names are ignored.
func (r *resources) Release(ctx context.Context, name string) error {
	r.mu.Lock()
	var target *resource
	for i := range r.held {
		if r.held[i].name == name {
			res := r.held[i]
			target = &res
			r.held = append(r.held[:i], r.held[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if target == nil {
		return nil
	}
	return runRelease(ctx, *target)
}

// ReleaseAll releases stage by stage, newest first within a stage. It is safe
// to call more than once; only the first call does any work. The returned
// error is informational.
func (r *resources) ReleaseAll(ctx context.Context) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	held := r.held
	r.held = nil
	r.mu.Unlock()

	var errs error
	for _, stage := range []resourceStage{stageProducers, stageChannel, stageDevices, stageGraph} {
		for i := len(held) - 1; i >= 0; i-- {
			if held[i].stage != stage {
				continue
			}
			errs = errors.Join(errs, runRelease(ctx, held[i]))
		}
	}
	return errs
}

func (r *resources) Held() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.held))
	for _, res := range r.held {
		names = append(names, res.name)
	}
	return names
}

func runRelease(ctx context.Context, res resource) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("release %s panicked: %v", res.name, recovered)
		}

		if err != nil {
			logger.Warn("failed to release resource", "resource", res.name, "stage", res.stage.String(), "error", err)
			metrics.teardownErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", res.name)))
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if res.release == nil {
		return nil
	}
	if err := res.release(ctx); err != nil {
		return fmt.Errorf("failed to release %s: %w", res.name, err)
	}
	return nil
}
