package session

import (
	"errors"
	"fmt"
)

type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateError:
		return "Error"
	}
	return fmt.Sprintf("ConnectionState(%d)", int32(s))
}

func parseConnectionState(name string) (ConnectionState, bool) {
	for _, state := range []ConnectionState{StateDisconnected, StateConnecting, StateConnected, StateError} {
		if state.String() == name {
			return state, true
		}
	}
	return StateDisconnected, false
}

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRetryNotAllowed   = errors.New("retry is only allowed after an error")
	ErrConnectAborted    = errors.New("connect aborted by disconnect")
	ErrNoDialer          = errors.New("no realtime dialer configured")
	ErrNoAudioGraph      = errors.New("no audio graph configured")
	ErrNoCamera          = errors.New("no camera configured")
)

// canTransition reports whether from -> to is an edge of the session state
// machine. Error and Disconnected are reachable from anywhere; Connecting
// only from Disconnected or Error; Connected only from Connecting.
func canTransition(from, to ConnectionState) bool {
	switch to {
	case StateError, StateDisconnected:
		return true
	case StateConnecting:
		return from == StateDisconnected || from == StateError
	case StateConnected:
		return from == StateConnecting
	}
	return false
}

func systemMessageFor(state ConnectionState, cause error) (string, bool) {
	switch state {
	case StateConnected:
		return "Connected", true
	case StateError:
		if cause == nil {
			return "Connection error", true
		}
		return "Connection error: " + cause.Error(), true
	}
	return "", false
}
