package audio

import "context"

// Microphone is a capture device delivering fixed-size blocks of PCM in its
// EncodingInfo. onAudio is called from the device thread and must not block.
type Microphone interface {
	EncodingInfo() EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	Close() error
}
