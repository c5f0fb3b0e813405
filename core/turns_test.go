package session

import (
	"testing"

	"github.com/koscakluka/ema-live/core/conversations"
)

func TestTurnAggregatorJoinsFragmentsPerRole(t *testing.T) {
	var turns turnAggregator
	turns.Append(conversations.RoleUser, "What is ")
	turns.Append(conversations.RoleAssistant, "It is ")
	turns.Append(conversations.RoleUser, "the time?")
	turns.Append(conversations.RoleAssistant, "noon.")

	messages := turns.Complete()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != conversations.RoleUser || messages[0].Text != "What is the time?" {
		t.Fatalf("expected user message first, got %+v", messages[0])
	}
	if messages[1].Role != conversations.RoleAssistant || messages[1].Text != "It is noon." {
		t.Fatalf("expected assistant message second, got %+v", messages[1])
	}

	if again := turns.Complete(); len(again) != 0 {
		t.Fatalf("expected buffers to be reset, got %+v", again)
	}
}

func TestTurnAggregatorSkipsEmptyRoles(t *testing.T) {
	var turns turnAggregator
	turns.Append(conversations.RoleAssistant, "Hello.")

	messages := turns.Complete()
	if len(messages) != 1 || messages[0].Role != conversations.RoleAssistant {
		t.Fatalf("expected a single assistant message, got %+v", messages)
	}
}

func TestTurnAggregatorInterruptKeepsUserBuffer(t *testing.T) {
	var turns turnAggregator
	turns.Append(conversations.RoleUser, "Wait")
	turns.Append(conversations.RoleAssistant, "As I was say")

	if discarded := turns.Interrupt(); discarded != "As I was say" {
		t.Fatalf("expected discarded assistant text, got %q", discarded)
	}
	if got := turns.Pending(conversations.RoleAssistant); got != "" {
		t.Fatalf("expected assistant buffer to be empty, got %q", got)
	}
	if got := turns.Pending(conversations.RoleUser); got != "Wait" {
		t.Fatalf("expected user buffer to survive, got %q", got)
	}

	turns.Append(conversations.RoleUser, ", stop.")
	turns.Append(conversations.RoleAssistant, "Sure.")
	messages := turns.Complete()
	if len(messages) != 2 || messages[0].Text != "Wait, stop." || messages[1].Text != "Sure." {
		t.Fatalf("expected merged user turn and fresh assistant turn, got %+v", messages)
	}
}
