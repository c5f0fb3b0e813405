package ffmpeg

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestSplitJPEGYieldsWholeImages(t *testing.T) {
	stream := []byte{
		0x00, 0x01, // garbage before the first image
		0xFF, 0xD8, 0x10, 0x11, 0xFF, 0xD9,
		0xFF, 0xD8, 0x20, 0xFF, 0x00, 0xFF, 0xD9,
		0xFF, 0xD8, 0x30, // truncated
	}

	// A one-byte reader forces the split function to see partial markers.
	scanner := bufio.NewScanner(&oneByteReader{data: stream})
	scanner.Split(SplitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("expected scan to succeed, got %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %x", len(frames), frames)
	}
	if !bytes.Equal(frames[0], []byte{0xFF, 0xD8, 0x10, 0x11, 0xFF, 0xD9}) {
		t.Fatalf("unexpected first frame %x", frames[0])
	}
	if !bytes.Equal(frames[1], []byte{0xFF, 0xD8, 0x20, 0xFF, 0x00, 0xFF, 0xD9}) {
		t.Fatalf("unexpected second frame %x", frames[1])
	}
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}
