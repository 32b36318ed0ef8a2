// Package proto defines the shared vocabulary exchanged between agents, the
// task request layer and operator-facing output.
package proto

import "fmt"

// State is a position in an agent's state machine.
type State string

// Agent states. Working is reserved for roles that build artifacts and is
// never entered by the solutions architect.
const (
	StateDiscovery   State = "DISCOVERY"
	StateWorking     State = "WORKING"
	StateUnitTesting State = "UNIT_TESTING"
	StateFinished    State = "FINISHED"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the run loop stops in this state.
func (s State) IsTerminal() bool {
	return s == StateFinished
}

// AllStates returns every known state in declaration order.
func AllStates() []State {
	return []State{StateDiscovery, StateWorking, StateUnitTesting, StateFinished}
}

// ParseState converts a string into a known State.
func ParseState(s string) (State, error) {
	for _, st := range AllStates() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown agent state: %q", s)
}
