package architect

import (
	"fmt"
	"slices"

	"autogippity/pkg/agent"
	"autogippity/pkg/proto"
)

// architectTransitions is the canonical transition table for the solutions
// architect. FINISHED is reachable from every state through the base state
// machine, so it only needs listing where it is a normal exit.
//
//nolint:gochecknoglobals // canonical table
var architectTransitions = agent.TransitionTable{
	// DISCOVERY goes to UNIT_TESTING when external data is needed, otherwise it finishes.
	proto.StateDiscovery: {proto.StateUnitTesting, proto.StateFinished},

	// UNIT_TESTING always finishes, whatever the probes returned.
	proto.StateUnitTesting: {proto.StateFinished},

	// WORKING is never entered by this role; it only leaves.
	proto.StateWorking: {proto.StateFinished},

	// FINISHED is terminal.
	proto.StateFinished: {},
}

// ValidNextStates returns the allowed next states for a given state.
func ValidNextStates(from proto.State) []proto.State {
	return slices.Clone(architectTransitions[from])
}

// IsValidArchitectTransition checks if a transition between two states is allowed.
func IsValidArchitectTransition(from, to proto.State) bool {
	return slices.Contains(architectTransitions[from], to)
}

// ValidateState checks if a state is valid for the architect.
func ValidateState(state proto.State) error {
	if _, ok := architectTransitions[state]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s is not an architect state", agent.ErrInvalidState, state)
}

// GetValidStates returns all valid states for the architect.
func GetValidStates() []proto.State {
	return proto.AllStates()
}
