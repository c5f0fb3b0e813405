package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrEmptyAudio         = errors.New("empty audio data")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrMisalignedPCMBlock = errors.New("audio data not aligned to sample size")
)

// Encode converts a raw capture block into the base64 payload carried by the
// realtime protocol.
func (e EncodingInfo) Encode(block []byte) (string, error) {
	if err := e.validate(block); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(block), nil
}

// Decode reverses Encode and validates that the payload holds whole samples.
func (e EncodingInfo) Decode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyAudio
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}

	if err := e.validate(data); err != nil {
		return nil, err
	}

	return data, nil
}

func (e EncodingInfo) validate(data []byte) error {
	size := e.Format.ByteSize()
	if size <= 0 {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, e.Format.Name())
	}
	if len(data) == 0 {
		return ErrEmptyAudio
	}
	if len(data)%size != 0 {
		return fmt.Errorf("%w: %d bytes for %d-byte samples", ErrMisalignedPCMBlock, len(data), size)
	}
	return nil
}
