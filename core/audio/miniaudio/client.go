package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Client owns the malgo context, the playback device and the mixer it
// renders. Microphones opened from it share the same context.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	*audio.Mixer
	playback playbackClient

	options   ClientOptions
	closeOnce sync.Once
}

type ClientOptions struct {
	CaptureEncoding  audio.EncodingInfo
	PlaybackEncoding audio.EncodingInfo
	// CaptureBlock is how much audio is delivered per capture callback.
	CaptureBlock time.Duration
}

type ClientOption func(*ClientOptions)

func WithCaptureSampleRate(sampleRate int) ClientOption {
	return func(o *ClientOptions) {
		o.CaptureEncoding.SampleRate = sampleRate
	}
}

func WithPlaybackSampleRate(sampleRate int) ClientOption {
	return func(o *ClientOptions) {
		o.PlaybackEncoding.SampleRate = sampleRate
	}
}

func WithCaptureBlock(block time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.CaptureBlock = block
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := ClientOptions{
		CaptureEncoding:  audio.GetDefaultEncodingInfo(),
		PlaybackEncoding: audio.GetDefaultOutputEncodingInfo(),
		CaptureBlock:     250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	mixer, err := audio.NewMixer(options.PlaybackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create mixer: %w", err)
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := &Client{
		audioContext: audioCtx,
		Mixer:        mixer,
		options:      options,
	}

	if err := client.playback.Init(audioCtx, mixer); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playback.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return client, nil
}

// OpenMicrophone initializes a capture device on the shared context. The
// device is not started until StartCapture.
func (c *Client) OpenMicrophone(context.Context) (audio.Microphone, error) {
	microphone := &captureClient{}
	blockSize := c.options.CaptureEncoding.BytesPerSecond() * int(c.options.CaptureBlock/time.Millisecond) / 1000
	if err := microphone.Init(c.audioContext, c.options.CaptureEncoding, blockSize); err != nil {
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}
	return microphone, nil
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.playback.Uninit()
		c.Mixer.Clear()
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
	})
	return nil
}
