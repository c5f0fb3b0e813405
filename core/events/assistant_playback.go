package events

import "time"

const (
	// KindAssistantPlaybackScheduled identifies a decoded buffer placed on the playback clock.
	KindAssistantPlaybackScheduled Kind = "assistant_playback.scheduled"
	// KindAssistantPlaybackEnded identifies a buffer that played to completion.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
	// KindAssistantPlaybackInterrupted identifies cancellation of all scheduled buffers.
	KindAssistantPlaybackInterrupted Kind = "assistant_playback.interrupted"
	// KindAssistantPlaybackDecodeFailed identifies an inbound payload that could not be played.
	KindAssistantPlaybackDecodeFailed Kind = "assistant_playback.decode_failed"
)

// AssistantPlaybackScheduled reports where on the playback clock a buffer starts.
type AssistantPlaybackScheduled struct {
	Base
	BufferID string
	Start    time.Duration
	Duration time.Duration
}

// NewAssistantPlaybackScheduled creates an assistant playback scheduled event.
func NewAssistantPlaybackScheduled(bufferID string, start, duration time.Duration) AssistantPlaybackScheduled {
	return AssistantPlaybackScheduled{
		Base:     NewBase(KindAssistantPlaybackScheduled),
		BufferID: bufferID,
		Start:    start,
		Duration: duration,
	}
}

// AssistantPlaybackEnded reports a buffer that finished playing.
type AssistantPlaybackEnded struct {
	Base
	BufferID string
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(bufferID string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), BufferID: bufferID}
}

// AssistantPlaybackInterrupted reports how many buffers were stopped.
type AssistantPlaybackInterrupted struct {
	Base
	Stopped int
}

// NewAssistantPlaybackInterrupted creates an assistant playback interrupted event.
func NewAssistantPlaybackInterrupted(stopped int) AssistantPlaybackInterrupted {
	return AssistantPlaybackInterrupted{Base: NewBase(KindAssistantPlaybackInterrupted), Stopped: stopped}
}

// AssistantPlaybackDecodeFailed reports a dropped inbound payload.
type AssistantPlaybackDecodeFailed struct {
	Base
	Err error
}

// NewAssistantPlaybackDecodeFailed creates an assistant playback decode failed event.
func NewAssistantPlaybackDecodeFailed(err error) AssistantPlaybackDecodeFailed {
	return AssistantPlaybackDecodeFailed{Base: NewBase(KindAssistantPlaybackDecodeFailed), Err: err}
}
