package session

import (
	"context"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// capturePipeline turns microphone blocks into outbound audio messages.
// OnAudio runs on the device thread.
type capturePipeline struct {
	encoding audio.EncodingInfo
	// active is false while muted or not Connected.
	active func() bool
	submit func(outboundMessage)
	emit   eventEmitter
}

func (c *capturePipeline) OnAudio(block []byte) {
	if !c.active() {
		return
	}

	payload, err := c.encoding.Encode(block)
	if err != nil {
		logger.Warn("failed to encode capture block", "size", len(block), "error", err)
		c.drop("encode")
		return
	}

	c.submit(outboundMessage{
		kind: outboundAudio,
		msg:  realtime.NewAudioInput(payload, c.encoding.MIMEType()),
	})
}

func (c *capturePipeline) drop(reason string) {
	metrics.audioChunksDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
	c.emit(events.NewUserAudioChunkDropped(reason))
}
