package events

import "github.com/koscakluka/ema-live/core/conversations"

const (
	// KindAssistantTranscriptSegment identifies an append-only assistant transcript fragment.
	KindAssistantTranscriptSegment Kind = "assistant_response.transcript_segment"
	// KindAssistantTranscriptFinal identifies the flushed assistant utterance.
	KindAssistantTranscriptFinal Kind = "assistant_response.transcript_final"
	// KindAssistantTranscriptDiscarded identifies a partial utterance dropped on interruption.
	KindAssistantTranscriptDiscarded Kind = "assistant_response.transcript_discarded"
)

// AssistantTranscriptSegment carries an assistant transcript fragment as received.
type AssistantTranscriptSegment struct {
	Base
	Segment string
}

// NewAssistantTranscriptSegment creates an assistant transcript segment event.
func NewAssistantTranscriptSegment(segment string) AssistantTranscriptSegment {
	return AssistantTranscriptSegment{Base: NewBase(KindAssistantTranscriptSegment), Segment: segment}
}

// AssistantTranscriptFinal carries the whole assistant utterance of a completed turn.
type AssistantTranscriptFinal struct {
	Base
	Message conversations.Message
}

// NewAssistantTranscriptFinal creates an assistant transcript final event.
func NewAssistantTranscriptFinal(message conversations.Message) AssistantTranscriptFinal {
	return AssistantTranscriptFinal{Base: NewBase(KindAssistantTranscriptFinal), Message: message}
}

// AssistantTranscriptDiscarded carries the partial text that was dropped.
type AssistantTranscriptDiscarded struct {
	Base
	Text string
}

// NewAssistantTranscriptDiscarded creates an assistant transcript discarded event.
func NewAssistantTranscriptDiscarded(text string) AssistantTranscriptDiscarded {
	return AssistantTranscriptDiscarded{Base: NewBase(KindAssistantTranscriptDiscarded), Text: text}
}
