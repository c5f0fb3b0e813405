package session

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestResourcesReleaseByStageNewestFirst(t *testing.T) {
	order := &callOrder{}
	res := newResources()
	ctx := context.Background()

	acquire := func(stage resourceStage, name string) {
		if err := res.Acquire(ctx, stage, name, func(context.Context) error {
			order.add(name)
			return nil
		}); err != nil {
			t.Fatalf("expected acquire %s to succeed, got %v", name, err)
		}
	}

	acquire(stageGraph, "graph")
	acquire(stageGraph, "playback")
	acquire(stageDevices, "microphone")
	acquire(stageChannel, "channel")
	acquire(stageProducers, "loops")
	acquire(stageProducers, "capture")
	acquire(stageDevices, "camera")
	acquire(stageProducers, "video")

	if err := res.ReleaseAll(ctx); err != nil {
		t.Fatalf("expected clean release, got %v", err)
	}

	want := []string{"video", "capture", "loops", "channel", "camera", "microphone", "playback", "graph"}
	if got := order.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("expected release order %v, got %v", want, got)
	}
}

func TestResourcesContinueAfterFailures(t *testing.T) {
	order := &callOrder{}
	res := newResources()
	ctx := context.Background()
	errClose := errors.New("close failed")

	_ = res.Acquire(ctx, stageGraph, "graph", func(context.Context) error {
		order.add("graph")
		return nil
	})
	_ = res.Acquire(ctx, stageDevices, "microphone", func(context.Context) error {
		order.add("microphone")
		panic("driver crashed")
	})
	_ = res.Acquire(ctx, stageChannel, "channel", func(context.Context) error {
		order.add("channel")
		return errClose
	})

	err := res.ReleaseAll(ctx)
	if !errors.Is(err, errClose) {
		t.Fatalf("expected joined error to include close failure, got %v", err)
	}

	want := []string{"channel", "microphone", "graph"}
	if got := order.snapshot(); !slices.Equal(got, want) {
		t.Fatalf("expected every release to run in order %v, got %v", want, got)
	}
}

func TestResourcesReleaseAllIsIdempotent(t *testing.T) {
	res := newResources()
	ctx := context.Background()
	calls := 0

	_ = res.Acquire(ctx, stageGraph, "graph", func(context.Context) error {
		calls++
		return nil
	})

	_ = res.ReleaseAll(ctx)
	_ = res.ReleaseAll(ctx)

	if calls != 1 {
		t.Fatalf("expected a single release, got %d", calls)
	}
}

func TestResourcesAcquireAfterReleaseRunsImmediately(t *testing.T) {
	res := newResources()
	ctx := context.Background()
	_ = res.ReleaseAll(ctx)

	released := false
	err := res.Acquire(ctx, stageDevices, "camera", func(context.Context) error {
		released = true
		return nil
	})
	if !errors.Is(err, errResourcesReleased) {
		t.Fatalf("expected errResourcesReleased, got %v", err)
	}
	if !released {
		t.Fatalf("expected late resource to be released right away")
	}
}

func TestResourcesReleaseSingle(t *testing.T) {
	res := newResources()
	ctx := context.Background()
	calls := 0

	_ = res.Acquire(ctx, stageDevices, "camera", func(context.Context) error {
		calls++
		return nil
	})
	_ = res.Acquire(ctx, stageDevices, "microphone", func(context.Context) error { return nil })

	if err := res.Release(ctx, "camera"); err != nil {
		t.Fatalf("expected release to succeed, got %v", err)
	}
	if err := res.Release(ctx, "camera"); err != nil {
		t.Fatalf("expected unknown release to be ignored, got %v", err)
	}
	if held := res.Held(); !slices.Equal(held, []string{"microphone"}) {
		t.Fatalf("expected only microphone held, got %v", held)
	}

	_ = res.ReleaseAll(ctx)
	if calls != 1 {
		t.Fatalf("expected camera to be released once, got %d", calls)
	}
}
