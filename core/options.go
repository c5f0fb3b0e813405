package session

import (
	"context"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/video"
)

type SessionOption func(*Session)

// Config holds the tunables a session reads once per connection.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string

	VideoFrameRate float64
	VideoQuality   int
	VideoDownscale int

	// OutboundQueueSize bounds the messages waiting for the channel writer.
	// When full the oldest is discarded.
	OutboundQueueSize int

	TeardownTimeout time.Duration
	ArchiveTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		VideoFrameRate:    5,
		VideoQuality:      video.DefaultQuality,
		VideoDownscale:    video.DefaultDownscale,
		OutboundQueueSize: 64,
		TeardownTimeout:   5 * time.Second,
		ArchiveTimeout:    10 * time.Second,
	}
}

// AudioGraph is the device side of a connection: a playback clock that
// buffers are scheduled against, and the microphone feeding capture.
type AudioGraph interface {
	EncodingInfo() audio.EncodingInfo
	Now() time.Duration
	Schedule(id string, pcm []byte, at time.Duration, onEnded func(id string)) error
	Stop(id string) error
	OpenMicrophone(ctx context.Context) (audio.Microphone, error)
	Close() error
}

// Archiver stores a finished transcript. Archive is called at most once per
// connection and never blocks teardown.
type Archiver interface {
	Archive(ctx context.Context, transcript conversations.Transcript) error
}

func WithConfig(config Config) SessionOption {
	return func(s *Session) {
		s.config = config
	}
}

func WithDialer(dialer realtime.Dialer) SessionOption {
	return func(s *Session) {
		s.dialer = dialer
	}
}

// WithAudioGraph sets how a connection obtains its audio graph. The opener
// runs on every Connect; the graph is closed on teardown.
func WithAudioGraph(open func(ctx context.Context) (AudioGraph, error)) SessionOption {
	return func(s *Session) {
		s.openGraph = open
	}
}

// WithCamera sets how EnableVideo obtains a camera.
func WithCamera(open func(ctx context.Context) (video.Camera, error)) SessionOption {
	return func(s *Session) {
		s.openCamera = open
	}
}

func WithArchiver(archiver Archiver) SessionOption {
	return func(s *Session) {
		s.archiver = archiver
	}
}

// WithEventHandler registers a handler receiving every session event.
//
// The handler runs inline on the goroutine that produced the event, which can
// be the inbound loop or the channel writer. It must not block and must not
// call back into the session.
func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(s *Session) {
		s.callbacks.onEvent = handler
	}
}

// WithStateChangedCallback registers a callback for connection state
// transitions. err is the cause when the new state is StateError.
func WithStateChangedCallback(callback func(state ConnectionState, err error)) SessionOption {
	return func(s *Session) {
		s.callbacks.onStateChanged = callback
	}
}

// WithMessageCallback registers a callback for transcript messages: system
// notices plus final user and assistant messages of each turn.
func WithMessageCallback(callback func(message conversations.Message)) SessionOption {
	return func(s *Session) {
		s.callbacks.onMessage = callback
	}
}

// WithMuted sets the initial mute flag.
func WithMuted(muted bool) SessionOption {
	return func(s *Session) {
		s.muted.Store(muted)
	}
}

type sessionCallbacks struct {
	onEvent        func(events.Event)
	onStateChanged func(state ConnectionState, err error)
	onMessage      func(message conversations.Message)
}
