package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var ErrVoiceNotFound = errors.New("voice not found")

// Mixer is a sample clock with a set of voices placed at absolute frame
// offsets. Output devices call Render from their audio thread; every call
// advances the clock by the number of frames rendered.
//
// Only mono linear16 is supported.
type Mixer struct {
	encoding EncodingInfo

	mu       sync.Mutex
	rendered int64
	voices   map[string]*voice
}

type voice struct {
	id      string
	start   int64
	samples []int16
	onEnded func(id string)
}

func (v *voice) end() int64 { return v.start + int64(len(v.samples)) }

func NewMixer(encoding EncodingInfo) (*Mixer, error) {
	if encoding.Format != EncodingLinear16 {
		return nil, fmt.Errorf("%w: mixer needs %q, got %q", ErrUnsupportedFormat, EncodingLinear16, encoding.Format.Name())
	}
	if encoding.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", encoding.SampleRate)
	}

	return &Mixer{encoding: encoding, voices: map[string]*voice{}}, nil
}

func (m *Mixer) EncodingInfo() EncodingInfo { return m.encoding }

// Now is the clock position of the next frame to be rendered.
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encoding.FramesDuration(m.rendered)
}

// Schedule places pcm on the clock at the given offset. Offsets in the past
// are clamped to the current frame. onEnded is called from the render
// goroutine once the last sample has been rendered; it must not block.
func (m *Mixer) Schedule(id string, pcm []byte, at time.Duration, onEnded func(id string)) error {
	if err := m.encoding.validate(pcm); err != nil {
		return err
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.voices[id]; ok {
		return fmt.Errorf("voice %q already scheduled", id)
	}

	start := m.encoding.Frames(at)
	if start < m.rendered {
		start = m.rendered
	}
	m.voices[id] = &voice{id: id, start: start, samples: samples, onEnded: onEnded}
	return nil
}

// Stop removes a voice before it finished. The ended callback is not called.
func (m *Mixer) Stop(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.voices[id]; !ok {
		return fmt.Errorf("%w: %s", ErrVoiceNotFound, id)
	}
	delete(m.voices, id)
	return nil
}

// Clear drops every voice without calling their ended callbacks.
func (m *Mixer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = map[string]*voice{}
}

// Active returns the number of voices that have not finished yet.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render mixes the window of frames that fits into out and advances the
// clock. Silence is written where no voice is playing.
func (m *Mixer) Render(out []byte) {
	frames := int64(len(out) / 2)
	if frames == 0 {
		return
	}

	mix := make([]int32, frames)

	m.mu.Lock()
	from, to := m.rendered, m.rendered+frames
	var ended []*voice
	for _, v := range m.voices {
		if v.start >= to {
			continue
		}

		first := max(v.start, from)
		last := min(v.end(), to)
		for frame := first; frame < last; frame++ {
			mix[frame-from] += int32(v.samples[frame-v.start])
		}

		if v.end() <= to {
			ended = append(ended, v)
			delete(m.voices, v.id)
		}
	}
	m.rendered = to
	m.mu.Unlock()

	for i, sample := range mix {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(clamp16(sample)))
	}

	sort.Slice(ended, func(i, j int) bool { return ended[i].end() < ended[j].end() })
	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded(v.id)
		}
	}
}

func clamp16(sample int32) int16 {
	if sample > math.MaxInt16 {
		return math.MaxInt16
	}
	if sample < math.MinInt16 {
		return math.MinInt16
	}
	return int16(sample)
}
