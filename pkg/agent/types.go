package agent

import (
	"context"
	"slices"
	"sync"

	"autogippity/pkg/agent/llm"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/proto"
)

// Agent is any role that can drive a fact sheet to completion.
type Agent interface {
	// Execute runs the agent's state machine until it finishes or fails.
	Execute(ctx context.Context, fs *factsheet.FactSheet) error
	// GetID returns the agent's identifier.
	GetID() string
}

// BasicAgent holds the attributes every agent role shares.
type BasicAgent struct {
	*BaseStateMachine
	objective string
	position  string
	memory    []llm.CompletionMessage
	memMu     sync.Mutex
}

// NewBasicAgent creates an agent in initialState with the given transition table.
func NewBasicAgent(id, objective, position string, initialState proto.State, store StateStore, table TransitionTable) *BasicAgent {
	return &BasicAgent{
		BaseStateMachine: NewBaseStateMachine(id, initialState, store, table),
		objective:        objective,
		position:         position,
	}
}

// GetID returns the agent's identifier.
func (a *BasicAgent) GetID() string {
	return a.GetAgentID()
}

// Objective returns what the agent is for.
func (a *BasicAgent) Objective() string {
	return a.objective
}

// Position returns the agent's role label, used to tag its messages.
func (a *BasicAgent) Position() string {
	return a.position
}

// State returns the current state.
func (a *BasicAgent) State() proto.State {
	return a.GetCurrentState()
}

// UpdateState sets the state directly, bypassing the transition table.
func (a *BasicAgent) UpdateState(state proto.State) error {
	return a.ForceState(state)
}

// Memory returns a copy of the agent's transcript.
func (a *BasicAgent) Memory() []llm.CompletionMessage {
	a.memMu.Lock()
	defer a.memMu.Unlock()
	return slices.Clone(a.memory)
}

// Remember appends a message to the agent's transcript.
func (a *BasicAgent) Remember(msg llm.CompletionMessage) {
	a.memMu.Lock()
	defer a.memMu.Unlock()
	a.memory = append(a.memory, msg)
}
