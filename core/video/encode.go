// Package video turns camera frames into the compact stills sent to the
// service.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	DefaultQuality   = 70
	DefaultDownscale = 2
)

var ErrEmptyFrame = errors.New("empty frame")

// Camera yields the most recent frame on demand. Implementations may block
// until a frame is available but must honour ctx.
type Camera interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type Encoder struct {
	// Downscale divides both dimensions; 1 keeps the original size.
	Downscale int
	// Quality is the JPEG quality, 1-100.
	Quality int
	// Scaler defaults to draw.ApproxBiLinear.
	Scaler draw.Scaler
}

func NewEncoder(downscale, quality int) (*Encoder, error) {
	if downscale < 1 {
		return nil, fmt.Errorf("invalid downscale factor %d", downscale)
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("invalid jpeg quality %d", quality)
	}
	return &Encoder{Downscale: downscale, Quality: quality, Scaler: draw.ApproxBiLinear}, nil
}

// Encode downscales the frame and compresses it to JPEG.
func (e *Encoder) Encode(frame image.Image) ([]byte, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	scaled := e.scale(frame)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Encoder) scale(frame image.Image) image.Image {
	if e.Downscale <= 1 {
		return frame
	}

	bounds := frame.Bounds()
	width := max(bounds.Dx()/e.Downscale, 1)
	height := max(bounds.Dy()/e.Downscale, 1)

	scaler := e.Scaler
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), frame, bounds, draw.Over, nil)
	return dst
}
