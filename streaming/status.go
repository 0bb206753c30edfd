package streaming

import "fmt"

type State uint8

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the manager's aggregate state. Message is only set for StateError.
type Status struct {
	State   State
	Message string
}

func (s Status) String() string {
	if s.Message == "" {
		return s.State.String()
	}
	return s.State.String() + ": " + s.Message
}
