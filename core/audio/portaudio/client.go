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

// Client is a blocking-stream audio graph. A render goroutine pulls frames
// from the mixer and writes them to the default output stream; each write
// blocks until the device has room, which keeps the mixer clock aligned with
// the hardware.
type Client struct {
	*audio.Mixer

	bufferSize      int
	captureEncoding audio.EncodingInfo
	stream          *portaudio.Stream
	out             []int16

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(bufferSize int, captureEncoding, playbackEncoding audio.EncodingInfo) (*Client, error) {
	mixer, err := audio.NewMixer(playbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create mixer: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(playbackEncoding.SampleRate), bufferSize, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Mixer:           mixer,
		bufferSize:      bufferSize,
		captureEncoding: captureEncoding,
		stream:          stream,
		out:             out,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	go client.render(ctx)

	return client, nil
}

func (c *Client) render(ctx context.Context) {
	defer close(c.done)

	frame := make([]byte, 2*c.bufferSize)
	retry := audio.NewStreamRetry("portaudio output", 10*time.Millisecond, time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.Mixer.Render(frame)
		for i := range c.out {
			c.out[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
		}
		if err := c.stream.Write(); err != nil {
			if !retry.Failed(ctx, fmt.Errorf("failed to write to output stream: %w", err)) {
				return
			}
			continue
		}
		retry.Succeeded()
	}
}

func (c *Client) OpenMicrophone(context.Context) (audio.Microphone, error) {
	in := make([]int16, c.bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.captureEncoding.SampleRate), c.bufferSize, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	return &microphone{stream: stream, in: in, encoding: c.captureEncoding}, nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		c.Mixer.Clear()

		if stopErr := c.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop output stream: %w", stopErr)
		}
		c.stream.Close()
		portaudio.Terminate()
	})
	return err
}
