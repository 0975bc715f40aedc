package av

import "fmt"

// State is the lifecycle position of a CallSession.
type State uint32

const (
	StateReady State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateTesting
	StateEnded
)

// String returns the lowercase state name reported to UIs and metrics.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateTesting:
		return "testing"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Active reports whether a peer call exists in this state.
func (s State) Active() bool {
	return s == StateConnected || s == StateDisconnected
}

var transitions = map[State][]State{
	StateReady:        {StateConnecting, StateTesting},
	StateConnecting:   {StateConnected, StateReady},
	StateConnected:    {StateDisconnected, StateEnded},
	StateDisconnected: {StateConnected, StateEnded},
	StateTesting:      {StateEnded},
	StateEnded:        {StateReady},
}

// CanTransition reports whether the table allows moving from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
