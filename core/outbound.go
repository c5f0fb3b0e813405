package session

import (
	"context"

	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type outboundKind string

const (
	outboundAudio outboundKind = "audio"
	outboundVideo outboundKind = "video"
)

type outboundMessage struct {
	kind outboundKind
	msg  realtime.ClientMessage
	// done is called exactly once: after the channel write, or when the
	// message is evicted or abandoned.
	done func(sent bool)
}

func (m outboundMessage) finish(sent bool) {
	if m.done != nil {
		m.done(sent)
	}
}

// outboundQueue is a bounded hand-off between producers and the writer.
// Producers never block: on overflow the oldest queued message is evicted.
type outboundQueue struct {
	messages chan outboundMessage
	onEvict  func(outboundMessage)
}

func newOutboundQueue(size int, onEvict func(outboundMessage)) *outboundQueue {
	if size < 1 {
		size = 1
	}
	if onEvict == nil {
		onEvict = func(outboundMessage) {}
	}
	return &outboundQueue{messages: make(chan outboundMessage, size), onEvict: onEvict}
}

func (q *outboundQueue) Submit(msg outboundMessage) {
	for {
		select {
		case q.messages <- msg:
			return
		default:
		}

		select {
		case evicted := <-q.messages:
			q.onEvict(evicted)
			evicted.finish(false)
		default:
		}
	}
}

// Drain abandons everything still queued.
func (q *outboundQueue) Drain() {
	for {
		select {
		case msg := <-q.messages:
			msg.finish(false)
		default:
			return
		}
	}
}

func (q *outboundQueue) Len() int { return len(q.messages) }

// writeLoop sends queued messages in order until ctx is done. Send failures
// are counted and logged; the inbound loop notices a dead channel on its own.
func writeLoop(ctx context.Context, channel realtime.Channel, queue *outboundQueue) error {
	defer queue.Drain()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-queue.messages:
			err := channel.Send(ctx, msg.msg)
			msg.finish(err == nil)

			kind := metric.WithAttributes(attribute.String("kind", string(msg.kind)))
			if err != nil {
				metrics.sendErrors.Add(ctx, 1, kind)
				logger.Debug("failed to send outbound message", "kind", string(msg.kind), "error", err)
				continue
			}

			switch msg.kind {
			case outboundAudio:
				metrics.audioChunksSent.Add(ctx, 1)
			case outboundVideo:
				metrics.videoFramesSent.Add(ctx, 1)
			}
		}
	}
}
