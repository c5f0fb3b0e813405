package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	session "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/conversations"
)

func TestPrinterWrapsUnderLabel(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, 30)

	p.Message(conversations.NewMessage(conversations.RoleAssistant, "the quick brown fox jumps over the lazy dog"))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected the message to wrap, got %q", out.String())
	}
	if !strings.Contains(lines[0], "assistant") {
		t.Fatalf("expected role label on the first line, got %q", lines[0])
	}
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, strings.Repeat(" ", labelWidth)) {
			t.Fatalf("expected continuation line to hang under the text, got %q", line)
		}
	}
}

func TestPrinterOnlyPrintsErrorStates(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, 80)

	p.State(session.StateConnected, nil)
	if out.Len() != 0 {
		t.Fatalf("expected nothing for a healthy state, got %q", out.String())
	}

	p.State(session.StateError, errors.New("remote hung up"))
	if !strings.Contains(out.String(), "remote hung up") {
		t.Fatalf("expected error to be printed, got %q", out.String())
	}
}

func TestNewPrinterFallsBackToDefaultWidth(t *testing.T) {
	if p := newPrinter(&bytes.Buffer{}, 3); p.width != defaultWidth {
		t.Fatalf("expected default width, got %d", p.width)
	}
}
