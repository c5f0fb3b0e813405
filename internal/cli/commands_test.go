package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	session "github.com/koscakluka/ema-live/core"
)

type fakeControls struct {
	muted     bool
	video     bool
	videoErr  error
	retries   int
	retryErr  error
	state     session.ConnectionState
	lastError error
}

func (f *fakeControls) SetMuted(muted bool) { f.muted = muted }
func (f *fakeControls) Muted() bool         { return f.muted }
func (f *fakeControls) EnableVideo(context.Context) error {
	if f.videoErr != nil {
		return f.videoErr
	}
	f.video = true
	return nil
}
func (f *fakeControls) DisableVideo()      { f.video = false }
func (f *fakeControls) VideoEnabled() bool { return f.video }
func (f *fakeControls) Retry(context.Context) error {
	f.retries++
	return f.retryErr
}
func (f *fakeControls) State() session.ConnectionState { return f.state }
func (f *fakeControls) Err() error                     { return f.lastError }

func TestParseCommand(t *testing.T) {
	cases := map[string]command{
		"":           commandNone,
		"   ":        commandNone,
		"mute":       commandMute,
		"UNMUTE":     commandUnmute,
		"video  on":  commandVideoOn,
		" video off": commandVideoOff,
		"v+":         commandVideoOn,
		"retry":      commandRetry,
		"status":     commandStatus,
		"?":          commandHelp,
		"exit":       commandQuit,
	}
	for line, want := range cases {
		got, err := parseCommand(line)
		if err != nil {
			t.Fatalf("expected %q to parse, got %v", line, err)
		}
		if got != want {
			t.Fatalf("expected %q to parse as %d, got %d", line, want, got)
		}
	}

	if _, err := parseCommand("video sideways"); !errors.Is(err, errUnknownCommand) {
		t.Fatalf("expected errUnknownCommand, got %v", err)
	}
}

func TestCommandLoopAppliesCommandsUntilQuit(t *testing.T) {
	controls := &fakeControls{state: session.StateConnected}
	var out bytes.Buffer
	in := strings.NewReader("mute\nvideo on\nbogus\nretry\nquit\nunmute\n")

	if err := commandLoop(context.Background(), in, controls, newPrinter(&out, 80)); err != nil {
		t.Fatalf("expected loop to end cleanly, got %v", err)
	}

	if !controls.muted {
		t.Fatalf("expected microphone to stay muted after quit")
	}
	if !controls.video {
		t.Fatalf("expected video to be enabled")
	}
	if controls.retries != 1 {
		t.Fatalf("expected one retry, got %d", controls.retries)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("expected unknown command notice, got %q", out.String())
	}
}

func TestCommandLoopEndsWithInput(t *testing.T) {
	controls := &fakeControls{}
	var out bytes.Buffer

	if err := commandLoop(context.Background(), strings.NewReader("mute\n"), controls, newPrinter(&out, 80)); err != nil {
		t.Fatalf("expected loop to end at EOF, got %v", err)
	}
	if !controls.muted {
		t.Fatalf("expected mute to be applied before EOF")
	}
}

func TestExecuteReportsFailures(t *testing.T) {
	controls := &fakeControls{
		videoErr:  session.ErrNoCamera,
		retryErr:  session.ErrRetryNotAllowed,
		state:     session.StateError,
		lastError: errors.New("socket closed"),
	}
	var out bytes.Buffer
	p := newPrinter(&out, 80)
	ctx := context.Background()

	execute(ctx, commandVideoOn, controls, p)
	execute(ctx, commandRetry, controls, p)
	execute(ctx, commandStatus, controls, p)

	got := out.String()
	for _, want := range []string{"camera unavailable", "retry failed", "state=Error", "error=socket closed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got %q", want, got)
		}
	}
	if controls.video {
		t.Fatalf("expected video to stay off after a camera failure")
	}
}
