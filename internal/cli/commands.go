package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	session "github.com/koscakluka/ema-live/core"
)

type command int

const (
	commandNone command = iota
	commandMute
	commandUnmute
	commandVideoOn
	commandVideoOff
	commandRetry
	commandStatus
	commandHelp
	commandQuit
)

var errUnknownCommand = errors.New("unknown command")

const commandHelpText = "commands: mute, unmute, video on, video off, retry, status, help, quit"

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return commandNone, nil
	}

	switch strings.Join(fields, " ") {
	case "mute", "m":
		return commandMute, nil
	case "unmute", "u":
		return commandUnmute, nil
	case "video on", "v+":
		return commandVideoOn, nil
	case "video off", "v-":
		return commandVideoOff, nil
	case "retry", "r":
		return commandRetry, nil
	case "status", "s":
		return commandStatus, nil
	case "help", "h", "?":
		return commandHelp, nil
	case "quit", "exit", "q":
		return commandQuit, nil
	}
	return commandNone, fmt.Errorf("%w: %q", errUnknownCommand, strings.TrimSpace(line))
}

// controls is the part of the session the command loop drives.
type controls interface {
	SetMuted(muted bool)
	Muted() bool
	EnableVideo(ctx context.Context) error
	DisableVideo()
	VideoEnabled() bool
	Retry(ctx context.Context) error
	State() session.ConnectionState
	Err() error
}

// execute applies one command and reports whether the loop should stop.
func execute(ctx context.Context, cmd command, s controls, out *printer) bool {
	switch cmd {
	case commandMute:
		s.SetMuted(true)
		out.Infof("microphone muted")
	case commandUnmute:
		s.SetMuted(false)
		out.Infof("microphone live")
	case commandVideoOn:
		if err := s.EnableVideo(ctx); err != nil {
			out.Infof("camera unavailable: %v", err)
			return false
		}
		out.Infof("camera on")
	case commandVideoOff:
		s.DisableVideo()
		out.Infof("camera off")
	case commandRetry:
		if err := s.Retry(ctx); err != nil {
			out.Infof("retry failed: %v", err)
		}
	case commandStatus:
		status := fmt.Sprintf("state=%s muted=%t video=%t", s.State(), s.Muted(), s.VideoEnabled())
		if err := s.Err(); err != nil {
			status += " error=" + err.Error()
		}
		out.Infof("%s", status)
	case commandHelp:
		out.Infof(commandHelpText)
	case commandQuit:
		return true
	}
	return false
}

// commandLoop reads commands from in until quit, end of input or ctx is done.
func commandLoop(ctx context.Context, in io.Reader, s controls, out *printer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("failed to read commands: %w", err)
					}
				default:
				}
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				out.Infof("%v (%s)", err, commandHelpText)
				continue
			}
			if execute(ctx, cmd, s, out) {
				return nil
			}
		}
	}
}
