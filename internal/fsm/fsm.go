// Package fsm validates network-link state transitions shared by netlink and the supervisor.
package fsm

import "fmt"

// State is one lifecycle state for the network link.
type State string

// Event is one transition trigger consumed by the state machine.
type Event string

const (
	StateDown       State = "down"
	StateConnecting State = "connecting"
	StateUp         State = "up"
)

const (
	EventConnect    Event = "connect"
	EventConnected  Event = "connected"
	EventDisconnect Event = "disconnect"
	EventFail       Event = "fail"
)

// Transition validates and applies one state transition.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateDown:
		switch event {
		case EventConnect:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventConnected:
			return StateUp, nil
		case EventFail, EventDisconnect:
			return StateDown, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateUp:
		switch event {
		case EventDisconnect, EventFail:
			return StateDown, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// invalidTransition formats a stable error message used by tests and callers.
func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
