package session

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

// run is the single consumer of inbound frames and playback completions.
// Everything that touches the scheduler or the turn aggregator happens here.
func (c *connection) run(ctx context.Context) error {
	messages := c.channel.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil

		case id := <-c.ended:
			if c.scheduler.Finished(id) {
				c.emit(events.NewAssistantPlaybackEnded(id))
			}

		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := c.channel.Err(); err != nil {
					return err
				}
				return realtime.ErrChannelClosed
			}
			c.handleServerMessage(ctx, msg)
		}
	}
}

func (c *connection) handleServerMessage(ctx context.Context, msg realtime.ServerMessage) {
	content := msg.ServerContent
	if content == nil {
		return
	}

	if content.Interrupted {
		c.interrupt(ctx)
	}

	for _, payload := range content.AudioPayloads() {
		c.play(ctx, payload)
	}

	if transcription := content.InputTranscription; transcription != nil && transcription.Text != "" {
		c.turns.Append(conversations.RoleUser, transcription.Text)
		c.emit(events.NewUserTranscriptSegment(transcription.Text))
	}
	if transcription := content.OutputTranscription; transcription != nil && transcription.Text != "" {
		c.turns.Append(conversations.RoleAssistant, transcription.Text)
		c.emit(events.NewAssistantTranscriptSegment(transcription.Text))
	}

	if content.TurnComplete {
		c.completeTurn()
	}
}

func (c *connection) interrupt(ctx context.Context) {
	stopped := c.scheduler.Interrupt()
	discarded := c.turns.Interrupt()
	metrics.interruptions.Add(ctx, 1)

	c.emit(events.NewAssistantPlaybackInterrupted(stopped))
	if discarded != "" {
		c.emit(events.NewAssistantTranscriptDiscarded(discarded))
	}
	c.emit(events.NewTurnInterrupted())
}

func (c *connection) play(ctx context.Context, payload string) {
	pcm, err := c.scheduler.encoding.Decode(payload)
	if err != nil {
		c.decodeFailed(ctx, err)
		return
	}

	buffer, err := c.scheduler.Schedule(pcm)
	if err != nil {
		c.decodeFailed(ctx, err)
		return
	}

	metrics.buffersScheduled.Add(ctx, 1)
	c.emit(events.NewAssistantPlaybackScheduled(buffer.ID, buffer.Start, buffer.Duration))
}

func (c *connection) decodeFailed(ctx context.Context, err error) {
	err = fmt.Errorf("failed to play inbound audio: %w", err)
	logger.Warn("dropping inbound audio payload", "error", err)
	metrics.decodeErrors.Add(ctx, 1)
	c.emit(events.NewAssistantPlaybackDecodeFailed(err))
}

func (c *connection) completeTurn() {
	for _, message := range c.turns.Complete() {
		c.log.Append(message)
		switch message.Role {
		case conversations.RoleUser:
			c.emit(events.NewUserTranscriptFinal(message))
		case conversations.RoleAssistant:
			c.emit(events.NewAssistantTranscriptFinal(message))
		}
	}
	c.emit(events.NewTurnCompleted())
}

// postEnded hands a completion from the audio thread to the inbound loop.
// It never blocks the caller.
func (c *connection) postEnded(id string) {
	go func() {
		select {
		case c.ended <- id:
		case <-c.ctx.Done():
		}
	}()
}
