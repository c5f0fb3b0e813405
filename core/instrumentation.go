package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/ema-live/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	metrics = newSessionMetrics()
)

type sessionMetrics struct {
	audioChunksSent    metric.Int64Counter
	audioChunksDropped metric.Int64Counter
	videoFramesSent    metric.Int64Counter
	videoFramesDropped metric.Int64Counter
	buffersScheduled   metric.Int64Counter
	interruptions      metric.Int64Counter
	decodeErrors       metric.Int64Counter
	sendErrors         metric.Int64Counter
	teardownErrors     metric.Int64Counter
}

func newSessionMetrics() sessionMetrics {
	return sessionMetrics{
		audioChunksSent:    counter("session.audio.chunks_sent", "Capture blocks written to the channel"),
		audioChunksDropped: counter("session.audio.chunks_dropped", "Capture blocks discarded before sending"),
		videoFramesSent:    counter("session.video.frames_sent", "Video frames written to the channel"),
		videoFramesDropped: counter("session.video.frames_dropped", "Video sampler ticks that produced no frame"),
		buffersScheduled:   counter("session.playback.buffers_scheduled", "Inbound audio buffers placed on the playback clock"),
		interruptions:      counter("session.playback.interruptions", "Interruption signals handled"),
		decodeErrors:       counter("session.playback.decode_errors", "Inbound audio payloads dropped"),
		sendErrors:         counter("session.channel.send_errors", "Outbound messages the channel failed to write"),
		teardownErrors:     counter("session.resources.release_errors", "Resource releases that failed"),
	}
}

func counter(name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}
