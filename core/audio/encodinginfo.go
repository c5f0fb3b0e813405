package audio

import (
	"strconv"
	"time"
)

const (
	DefaultSampleRate       = 16000
	DefaultOutputSampleRate = 24000
	DefaultFormat           = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

func GetDefaultOutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultOutputSampleRate, Format: EncodingLinear16}
}

// EncodingInfo describes a mono PCM stream.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

// BytesPerSecond returns -1 for unknown formats.
func (e EncodingInfo) BytesPerSecond() int {
	if e.Format.ByteSize() < 0 {
		return -1
	}
	return e.SampleRate * e.Format.ByteSize()
}

// Duration is the playback length of a payload in this encoding. Trailing
// partial samples are ignored.
func (e EncodingInfo) Duration(size int) time.Duration {
	bytesPerSecond := e.BytesPerSecond()
	if bytesPerSecond <= 0 || size <= 0 {
		return 0
	}
	return e.FramesDuration(e.Samples(size))
}

// Samples is the number of whole sample frames in a payload.
func (e EncodingInfo) Samples(size int) int64 {
	if e.Format.ByteSize() <= 0 || size <= 0 {
		return 0
	}
	return int64(size / e.Format.ByteSize())
}

// Frames converts a clock offset into the nearest whole sample frame, so
// offsets built by summing Durations land on the frame they started from.
func (e EncodingInfo) Frames(d time.Duration) int64 {
	if e.SampleRate <= 0 || d <= 0 {
		return 0
	}
	return (int64(d)*int64(e.SampleRate) + int64(time.Second)/2) / int64(time.Second)
}

// FramesDuration converts a frame count back into a clock offset.
func (e EncodingInfo) FramesDuration(frames int64) time.Duration {
	if e.SampleRate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(e.SampleRate))
}

// MIMEType is the media type the realtime protocol expects for raw audio.
func (e EncodingInfo) MIMEType() string {
	switch e.Format {
	case EncodingMulaw:
		return "audio/pcmu"
	case EncodingALaw:
		return "audio/pcma"
	}
	return "audio/pcm;rate=" + strconv.Itoa(e.SampleRate)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
