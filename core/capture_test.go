package session

import (
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
)

func TestCapturePipelineSubmitsEncodedBlocks(t *testing.T) {
	submitted := &submitRecorder{}
	capture := &capturePipeline{
		encoding: audio.GetDefaultEncodingInfo(),
		active:   func() bool { return true },
		submit:   submitted.submit,
		emit:     noopEventEmitter,
	}

	capture.OnAudio([]byte{1, 0, 2, 0})

	messages := submitted.snapshot()
	if len(messages) != 1 {
		t.Fatalf("expected one submitted block, got %d", len(messages))
	}
	media := messages[0].msg.RealtimeInput.Media
	if media.Data != "AQACAA==" {
		t.Fatalf("expected base64 block, got %q", media.Data)
	}
	if media.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("expected pcm mime type, got %q", media.MIMEType)
	}
}

func TestCapturePipelineDiscardsWhileInactive(t *testing.T) {
	var active atomic.Bool
	submitted := &submitRecorder{}
	capture := &capturePipeline{
		encoding: audio.GetDefaultEncodingInfo(),
		active:   active.Load,
		submit:   submitted.submit,
		emit:     noopEventEmitter,
	}

	capture.OnAudio(pcmBlock(160))
	active.Store(true)
	capture.OnAudio(pcmBlock(160))
	active.Store(false)
	capture.OnAudio(pcmBlock(160))

	if got := len(submitted.snapshot()); got != 1 {
		t.Fatalf("expected only the active block to be submitted, got %d", got)
	}
}

func TestCapturePipelineDropsMisalignedBlocks(t *testing.T) {
	submitted := &submitRecorder{}
	handler := &testEventHandler{}
	capture := &capturePipeline{
		encoding: audio.GetDefaultEncodingInfo(),
		active:   func() bool { return true },
		submit:   submitted.submit,
		emit:     handler.handle,
	}

	capture.OnAudio([]byte{1, 2, 3})

	if got := len(submitted.snapshot()); got != 0 {
		t.Fatalf("expected misaligned block to be dropped, got %d submitted", got)
	}
	if handler.count(events.KindUserAudioChunkDropped) != 1 {
		t.Fatalf("expected a dropped chunk event")
	}
}
