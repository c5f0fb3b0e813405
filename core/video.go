package session

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/video"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// videoSampler captures one frame per tick. A tick that finds the previous
// frame still compressing or sending is skipped rather than queued.
type videoSampler struct {
	camera   video.Camera
	encoder  *video.Encoder
	interval time.Duration
	active   func() bool
	submit   func(outboundMessage)
	emit     eventEmitter

	busy     atomic.Bool
	inFlight sync.WaitGroup

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func newVideoSampler(camera video.Camera, encoder *video.Encoder, frameRate float64, active func() bool, submit func(outboundMessage), emit eventEmitter) *videoSampler {
	interval := time.Second / 5
	if frameRate > 0 {
		interval = time.Duration(float64(time.Second) / frameRate)
	}

	return &videoSampler{
		camera:   camera,
		encoder:  encoder,
		interval: interval,
		active:   active,
		submit:   submit,
		emit:     emit,
	}
}

func (v *videoSampler) Start(ctx context.Context) {
	ctx, v.cancel = context.WithCancel(ctx)
	v.done = make(chan struct{})

	go func() {
		defer close(v.done)

		ticker := time.NewTicker(v.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v.tick(ctx)
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight capture to return.
func (v *videoSampler) Stop(context.Context) error {
	v.stopOnce.Do(func() {
		if v.cancel != nil {
			v.cancel()
			<-v.done
		}
		v.inFlight.Wait()
	})
	return nil
}

// tick reports whether a frame capture was started.
func (v *videoSampler) tick(ctx context.Context) bool {
	if !v.active() {
		return false
	}

	if !v.busy.CompareAndSwap(false, true) {
		v.dropped(ctx, "busy")
		return false
	}

	v.inFlight.Add(1)
	go func() {
		defer v.inFlight.Done()
		v.sample(ctx)
	}()
	return true
}

func (v *videoSampler) sample(ctx context.Context) {
	frame, err := v.camera.Frame(ctx)
	if err != nil {
		v.busy.Store(false)
		if ctx.Err() == nil {
			logger.Warn("failed to capture camera frame", "error", err)
			v.dropped(ctx, "capture")
		}
		return
	}

	data, err := v.encoder.Encode(frame)
	if err != nil {
		v.busy.Store(false)
		logger.Warn("failed to compress camera frame", "error", err)
		v.dropped(ctx, "encode")
		return
	}

	v.submit(outboundMessage{
		kind: outboundVideo,
		msg:  realtime.NewVideoInput(base64.StdEncoding.EncodeToString(data)),
		done: func(sent bool) {
			v.busy.Store(false)
			if sent {
				v.emit(events.NewVideoFrameSent(len(data)))
			}
		},
	})
}

func (v *videoSampler) dropped(ctx context.Context, reason string) {
	metrics.videoFramesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	v.emit(events.NewVideoFrameDropped(reason))
}
