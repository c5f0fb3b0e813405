package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
)

type microphone struct {
	stream   *portaudio.Stream
	in       []int16
	encoding audio.EncodingInfo

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *microphone) EncodingInfo() audio.EncodingInfo {
	return m.encoding
}

func (m *microphone) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.read(ctx, onAudio, m.done)
	return nil
}

func (m *microphone) read(ctx context.Context, onAudio func(audio []byte), done chan struct{}) {
	defer close(done)

	retry := audio.NewStreamRetry("portaudio input", 10*time.Millisecond, time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			if !retry.Failed(ctx, fmt.Errorf("failed to read from input stream: %w", err)) {
				return
			}
			continue
		}
		retry.Succeeded()

		block := make([]byte, 2*len(m.in))
		for i, sample := range m.in {
			binary.LittleEndian.PutUint16(block[2*i:], uint16(sample))
		}
		onAudio(block)
	}
}

func (m *microphone) StopCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	<-m.done
	m.cancel = nil

	if err := m.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

func (m *microphone) Close() error {
	if err := m.StopCapture(); err != nil {
		logger.Warn("failed to stop capture before close", "error", err)
	}
	if err := m.stream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}
