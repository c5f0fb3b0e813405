package session

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/realtime"
)

func audioMessage(data string, done func(bool)) outboundMessage {
	return outboundMessage{
		kind: outboundAudio,
		msg:  realtime.NewAudioInput(data, "audio/pcm;rate=16000"),
		done: done,
	}
}

func TestOutboundQueueEvictsOldestOnOverflow(t *testing.T) {
	var evicted []string
	queue := newOutboundQueue(2, func(msg outboundMessage) {
		evicted = append(evicted, msg.msg.RealtimeInput.Media.Data)
	})

	var results []bool
	done := func(sent bool) { results = append(results, sent) }

	queue.Submit(audioMessage("a", done))
	queue.Submit(audioMessage("b", nil))
	queue.Submit(audioMessage("c", nil))

	if !slices.Equal(evicted, []string{"a"}) {
		t.Fatalf("expected oldest message to be evicted, got %v", evicted)
	}
	if !slices.Equal(results, []bool{false}) {
		t.Fatalf("expected evicted message to finish unsent, got %v", results)
	}
	if queue.Len() != 2 {
		t.Fatalf("expected queue to stay at capacity, got %d", queue.Len())
	}
}

func TestWriteLoopSendsInOrderAndDrainsOnStop(t *testing.T) {
	channel := newTestChannel(nil)
	queue := newOutboundQueue(8, nil)

	sent := make(chan string, 8)
	for _, data := range []string{"a", "b", "c"} {
		queue.Submit(audioMessage(data, func(ok bool) {
			if ok {
				sent <- data
			}
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = writeLoop(ctx, channel, queue)
	}()

	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-sent:
			if got != want {
				t.Fatalf("expected %q to be sent next, got %q", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	<-done

	abandoned := make(chan bool, 1)
	queue.Submit(audioMessage("late", func(ok bool) { abandoned <- ok }))
	queue.Drain()
	if ok := <-abandoned; ok {
		t.Fatalf("expected drained message to finish unsent")
	}
}

func TestWriteLoopSurvivesSendErrors(t *testing.T) {
	channel := newTestChannel(nil)
	channel.shutdown(nil)
	queue := newOutboundQueue(4, nil)

	results := make(chan bool, 2)
	queue.Submit(audioMessage("a", func(ok bool) { results <- ok }))
	queue.Submit(audioMessage("b", func(ok bool) { results <- ok }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writeLoop(ctx, channel, queue) }()

	for range 2 {
		select {
		case ok := <-results:
			if ok {
				t.Fatalf("expected send on closed channel to fail")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for send result")
		}
	}
}
