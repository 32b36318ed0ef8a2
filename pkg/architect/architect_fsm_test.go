package architect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"autogippity/pkg/agent"
	"autogippity/pkg/proto"
)

func TestIsValidArchitectTransition(t *testing.T) {
	valid := []struct {
		from proto.State
		to   proto.State
		name string
	}{
		{proto.StateDiscovery, proto.StateUnitTesting, "DISCOVERY -> UNIT_TESTING (external data needed)"},
		{proto.StateDiscovery, proto.StateFinished, "DISCOVERY -> FINISHED (no external data)"},
		{proto.StateUnitTesting, proto.StateFinished, "UNIT_TESTING -> FINISHED (always)"},
		{proto.StateWorking, proto.StateFinished, "WORKING -> FINISHED (fallback)"},
	}
	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsValidArchitectTransition(tt.from, tt.to))
		})
	}

	invalid := []struct {
		from proto.State
		to   proto.State
	}{
		{proto.StateDiscovery, proto.StateWorking},
		{proto.StateUnitTesting, proto.StateDiscovery},
		{proto.StateFinished, proto.StateDiscovery},
		{proto.StateFinished, proto.StateUnitTesting},
	}
	for _, tt := range invalid {
		assert.False(t, IsValidArchitectTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidNextStatesReturnsCopy(t *testing.T) {
	next := ValidNextStates(proto.StateDiscovery)
	assert.Equal(t, []proto.State{proto.StateUnitTesting, proto.StateFinished}, next)

	next[0] = proto.StateWorking
	assert.Equal(t, proto.StateUnitTesting, ValidNextStates(proto.StateDiscovery)[0])
	assert.Empty(t, ValidNextStates(proto.StateFinished))
}

func TestValidateState(t *testing.T) {
	for _, s := range GetValidStates() {
		assert.NoError(t, ValidateState(s))
	}
	assert.ErrorIs(t, ValidateState(proto.State("PLANNING")), agent.ErrInvalidState)
}
