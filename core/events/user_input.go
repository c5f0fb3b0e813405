package events

import "github.com/koscakluka/ema-live/core/conversations"

const (
	// KindUserAudioChunkDropped identifies a capture block discarded before sending.
	KindUserAudioChunkDropped Kind = "user_input.audio_chunk_dropped"
	// KindUserTranscriptSegment identifies an append-only user transcript fragment.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the flushed user utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserAudioChunkDropped reports a capture block that was not sent.
type UserAudioChunkDropped struct {
	Base
	Reason string
}

// NewUserAudioChunkDropped creates a user audio chunk dropped event.
func NewUserAudioChunkDropped(reason string) UserAudioChunkDropped {
	return UserAudioChunkDropped{Base: NewBase(KindUserAudioChunkDropped), Reason: reason}
}

// UserTranscriptSegment carries a user transcript fragment as received.
type UserTranscriptSegment struct {
	Base
	Segment string
}

// NewUserTranscriptSegment creates a user transcript segment event.
func NewUserTranscriptSegment(segment string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment}
}

// UserTranscriptFinal carries the whole user utterance of a completed turn.
type UserTranscriptFinal struct {
	Base
	Message conversations.Message
}

// NewUserTranscriptFinal creates a user transcript final event.
func NewUserTranscriptFinal(message conversations.Message) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Message: message}
}
