package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
)

var errEmptyBuffer = errors.New("buffer has no playable samples")

// playbackGraph is the part of the audio graph the scheduler drives.
type playbackGraph interface {
	Now() time.Duration
	Schedule(id string, pcm []byte, at time.Duration, onEnded func(id string)) error
	Stop(id string) error
}

type scheduledBuffer struct {
	ID       string
	Start    time.Duration
	Duration time.Duration
}

// playbackScheduler places decoded buffers back to back on the graph clock.
//
// It is owned by the inbound loop: Schedule, Finished and Interrupt must only
// be called from that goroutine, which is what makes an interruption atomic
// with respect to buffers arriving around it.
type playbackScheduler struct {
	graph    playbackGraph
	encoding audio.EncodingInfo
	onEnded  func(id string)

	// cursor is the earliest sample frame the next buffer may start at. It is
	// kept in frames so summing buffers never drifts off the sample grid.
	cursor int64
	active map[string]scheduledBuffer
}

func newPlaybackScheduler(graph playbackGraph, encoding audio.EncodingInfo, onEnded func(id string)) *playbackScheduler {
	return &playbackScheduler{
		graph:    graph,
		encoding: encoding,
		onEnded:  onEnded,
		cursor:   encoding.Frames(graph.Now()),
		active:   map[string]scheduledBuffer{},
	}
}

// Schedule starts pcm at max(cursor, now) and advances the cursor by its
// duration. A producer that falls behind gets a gap, not an overlap.
func (p *playbackScheduler) Schedule(pcm []byte) (scheduledBuffer, error) {
	frames := p.encoding.Samples(len(pcm))
	if frames <= 0 {
		return scheduledBuffer{}, errEmptyBuffer
	}

	start := max(p.cursor, p.encoding.Frames(p.graph.Now()))
	buffer := scheduledBuffer{
		ID:       uuid.NewString(),
		Start:    p.encoding.FramesDuration(start),
		Duration: p.encoding.FramesDuration(frames),
	}

	if err := p.graph.Schedule(buffer.ID, pcm, buffer.Start, p.onEnded); err != nil {
		return scheduledBuffer{}, fmt.Errorf("failed to schedule buffer: %w", err)
	}

	p.active[buffer.ID] = buffer
	p.cursor = start + frames
	return buffer, nil
}

// Finished drops a completed buffer from the active set. The cursor is not
// touched. It reports whether the buffer was still tracked.
func (p *playbackScheduler) Finished(id string) bool {
	if _, ok := p.active[id]; !ok {
		return false
	}
	delete(p.active, id)
	return true
}

// Interrupt stops everything that is playing or queued and resets the cursor
// to now. Stop errors for buffers that already ended are ignored.
func (p *playbackScheduler) Interrupt() int {
	stopped := len(p.active)
	for id := range p.active {
		if err := p.graph.Stop(id); err != nil {
			logger.Debug("stop on finished buffer", "buffer", id, "error", err)
		}
	}
	clear(p.active)
	p.cursor = p.encoding.Frames(p.graph.Now())
	return stopped
}

func (p *playbackScheduler) Cursor() time.Duration { return p.encoding.FramesDuration(p.cursor) }
func (p *playbackScheduler) Active() int           { return len(p.active) }
