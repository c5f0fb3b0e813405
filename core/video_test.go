package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/video"
)

type submitRecorder struct {
	mu       sync.Mutex
	messages []outboundMessage
}

func (r *submitRecorder) submit(msg outboundMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *submitRecorder) snapshot() []outboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outboundMessage(nil), r.messages...)
}

func newTestSampler(t *testing.T, camera video.Camera, active func() bool, submit func(outboundMessage), emit eventEmitter) *videoSampler {
	t.Helper()

	encoder, err := video.NewEncoder(2, 70)
	if err != nil {
		t.Fatalf("expected encoder, got %v", err)
	}
	return newVideoSampler(camera, encoder, 5, active, submit, emit)
}

func TestVideoSamplerDropsTicksWhileFrameInFlight(t *testing.T) {
	camera := newTestCamera(nil)
	camera.gate = make(chan struct{})
	submitted := &submitRecorder{}
	handler := &testEventHandler{}

	sampler := newTestSampler(t, camera, func() bool { return true }, submitted.submit, handler.handle)
	ctx := context.Background()

	if !sampler.tick(ctx) {
		t.Fatalf("expected first tick to start a capture")
	}
	if sampler.tick(ctx) {
		t.Fatalf("expected tick during capture to be dropped")
	}
	if handler.count(events.KindVideoFrameDropped) != 1 {
		t.Fatalf("expected one dropped frame event, got %d", handler.count(events.KindVideoFrameDropped))
	}

	camera.gate <- struct{}{}
	waitForCondition(t, time.Second, "frame submission", func() bool { return len(submitted.snapshot()) == 1 })

	if sampler.tick(ctx) {
		t.Fatalf("expected tick to be dropped until the frame is sent")
	}

	msg := submitted.snapshot()[0]
	if msg.kind != outboundVideo || msg.msg.RealtimeInput.Media.MIMEType != realtime.MIMETypeJPEG {
		t.Fatalf("expected a jpeg video message, got %+v", msg)
	}
	msg.finish(true)

	if handler.count(events.KindVideoFrameSent) != 1 {
		t.Fatalf("expected one frame sent event, got %d", handler.count(events.KindVideoFrameSent))
	}
	if !sampler.tick(ctx) {
		t.Fatalf("expected tick after send to start a capture")
	}
	camera.gate <- struct{}{}
	_ = sampler.Stop(ctx)
}

func TestVideoSamplerUnsentFrameClearsBusy(t *testing.T) {
	camera := newTestCamera(nil)
	submitted := &submitRecorder{}
	sampler := newTestSampler(t, camera, func() bool { return true }, submitted.submit, noopEventEmitter)
	ctx := context.Background()

	sampler.tick(ctx)
	waitForCondition(t, time.Second, "frame submission", func() bool { return len(submitted.snapshot()) == 1 })
	submitted.snapshot()[0].finish(false)

	if !sampler.tick(ctx) {
		t.Fatalf("expected evicted frame to free the sampler")
	}
	_ = sampler.Stop(ctx)
}

func TestVideoSamplerSkipsWhenInactive(t *testing.T) {
	camera := newTestCamera(nil)
	sampler := newTestSampler(t, camera, func() bool { return false }, func(outboundMessage) {}, noopEventEmitter)

	if sampler.tick(context.Background()) {
		t.Fatalf("expected inactive sampler to skip")
	}
	if camera.frameCalls.Load() != 0 {
		t.Fatalf("expected no camera reads, got %d", camera.frameCalls.Load())
	}
}

func TestVideoSamplerStopWaitsForTicker(t *testing.T) {
	camera := newTestCamera(nil)
	var submitted atomic.Int32
	sampler := newTestSampler(t, camera, func() bool { return true }, func(msg outboundMessage) {
		submitted.Add(1)
		msg.finish(true)
	}, noopEventEmitter)
	sampler.interval = 5 * time.Millisecond

	sampler.Start(context.Background())
	waitForCondition(t, time.Second, "frames from ticker", func() bool { return submitted.Load() >= 2 })

	if err := sampler.Stop(context.Background()); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	after := submitted.Load()
	time.Sleep(30 * time.Millisecond)
	if submitted.Load() != after {
		t.Fatalf("expected no frames after stop, got %d more", submitted.Load()-after)
	}
	if err := sampler.Stop(context.Background()); err != nil {
		t.Fatalf("expected second stop to succeed, got %v", err)
	}
}
