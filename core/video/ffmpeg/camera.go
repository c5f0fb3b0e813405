// Package ffmpeg reads camera frames through an ffmpeg subprocess writing an
// MJPEG stream to stdout.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

var ErrCameraClosed = errors.New("camera closed")

type Options struct {
	Binary      string
	InputFormat string
	Device      string
	FrameRate   int
}

type Option func(*Options)

func WithBinary(path string) Option {
	return func(o *Options) {
		o.Binary = path
	}
}

func WithDevice(inputFormat, device string) Option {
	return func(o *Options) {
		o.InputFormat = inputFormat
		o.Device = device
	}
}

func WithFrameRate(fps int) Option {
	return func(o *Options) {
		o.FrameRate = fps
	}
}

func defaultOptions() Options {
	options := Options{Binary: "ffmpeg", FrameRate: 15}
	switch runtime.GOOS {
	case "darwin":
		options.InputFormat, options.Device = "avfoundation", "0:none"
	case "windows":
		options.InputFormat, options.Device = "dshow", "video=Integrated Camera"
	default:
		options.InputFormat, options.Device = "v4l2", "/dev/video0"
	}
	return options
}

// Camera keeps the most recent frame produced by ffmpeg.
type Camera struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu     sync.Mutex
	latest []byte
	err    error
	ready  chan struct{}
	done   chan struct{}

	readyOnce sync.Once
	closeOnce sync.Once
}

// Open starts ffmpeg. The subprocess lives until Close.
func Open(ctx context.Context, opts ...Option) (*Camera, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", options.InputFormat,
		"-framerate", strconv.Itoa(options.FrameRate),
		"-i", options.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-",
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(ctx, options.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	camera := &Camera{
		cmd:    cmd,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go camera.read(stdout)

	return camera, nil
}

func (c *Camera) read(stdout io.Reader) {
	defer close(c.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 512*1024), 16*1024*1024)
	scanner.Split(SplitJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		c.mu.Lock()
		c.latest = frame
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
	}

	c.mu.Lock()
	if err := scanner.Err(); err != nil {
		c.err = fmt.Errorf("failed to read camera stream: %w", err)
	} else {
		c.err = ErrCameraClosed
	}
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
}

// Frame decodes the most recent frame, waiting for the first one if needed.
func (c *Camera) Frame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ready:
	}

	c.mu.Lock()
	latest, err := c.latest, c.err
	c.mu.Unlock()

	if latest == nil {
		if err == nil {
			err = ErrCameraClosed
		}
		return nil, err
	}

	frame, decodeErr := jpeg.Decode(bytes.NewReader(latest))
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode camera frame: %w", decodeErr)
	}
	return frame, nil
}

func (c *Camera) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		_ = c.cmd.Wait()
	})
	return nil
}

var (
	startOfImage = []byte{0xFF, 0xD8}
	endOfImage   = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc yielding whole JPEG images from a
// concatenated stream. Bytes before a start-of-image marker are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, startOfImage)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a possible split marker.
		return max(len(data)-1, 0), nil, nil
	}

	end := bytes.Index(data[start+len(startOfImage):], endOfImage)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(startOfImage) + end + len(endOfImage)
	return stop, data[start:stop], nil
}
