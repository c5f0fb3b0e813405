package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type captureClient struct {
	device   *malgo.Device
	config   malgo.DeviceConfig
	encoding audio.EncodingInfo

	// pending collects device periods until a whole block is available.
	pending   []byte
	blockSize int
	onAudio   func(audio []byte)

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo, blockSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.encoding = encoding
	c.blockSize = max(blockSize, bytesPerFrame)
	c.blockSize -= c.blockSize % bytesPerFrame

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(encoding.SampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	var err error
	c.device, err = malgo.InitDevice(audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.collect(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) collect(input []byte) {
	c.mu.Lock()
	onAudio := c.onAudio
	if onAudio == nil {
		c.mu.Unlock()
		return
	}

	c.pending = append(c.pending, input...)
	var blocks [][]byte
	for len(c.pending) >= c.blockSize {
		block := make([]byte, c.blockSize)
		copy(block, c.pending[:c.blockSize])
		blocks = append(blocks, block)
		c.pending = c.pending[c.blockSize:]
	}
	c.mu.Unlock()

	for _, block := range blocks {
		onAudio(block)
	}
}

func (c *captureClient) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

func (c *captureClient) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.onAudio = onAudio
	c.pending = nil
	if err := c.device.Start(); err != nil {
		c.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *captureClient) StopCapture() error {
	c.mu.Lock()
	device := c.device
	c.onAudio = nil
	c.pending = nil
	c.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return nil
	}

	// Stop waits for the data callback to return, which needs c.mu.
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Close() error {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.onAudio = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}
