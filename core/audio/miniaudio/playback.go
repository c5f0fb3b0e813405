package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// playbackClient pulls every device period from the mixer, so the mixer's
// clock advances in lockstep with the hardware.
type playbackClient struct {
	device *malgo.Device
	config malgo.DeviceConfig

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, mixer *audio.Mixer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(mixer.EncodingInfo().SampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	c.config.Periods = 3

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.render(mixer, bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) render(mixer *audio.Mixer, bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if need > len(pOutput) {
			need = len(pOutput)
		}
		mixer.Render(pOutput[:need])
	}
}
