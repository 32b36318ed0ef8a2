package agent

import (
	"fmt"
	"slices"

	"autogippity/pkg/proto"
)

// IsValidTransition checks if a state transition is allowed by this
// machine's table.
func (sm *BaseStateMachine) IsValidTransition(from, to proto.State) bool {
	// Allow any transition to the terminal state.
	if to == proto.StateFinished {
		return true
	}

	allowed, ok := sm.table[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// ValidateState returns ErrInvalidState for a state the table does not know.
func (sm *BaseStateMachine) ValidateState(state proto.State) error {
	if state == proto.StateFinished {
		return nil
	}
	if _, ok := sm.table[state]; ok {
		return nil
	}
	for _, targets := range sm.table {
		if slices.Contains(targets, state) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, state)
}
