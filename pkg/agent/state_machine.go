package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"autogippity/pkg/logx"
	"autogippity/pkg/proto"
)

// StateTransition represents a transition between states.
type StateTransition struct {
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	FromState proto.State    `json:"from_state"`
	ToState   proto.State    `json:"to_state"`
}

// StateData represents generic state storage.
type StateData map[string]any

// TransitionTable represents valid state transitions for an agent instance.
type TransitionTable map[proto.State][]proto.State

// StateStore defines the interface for state persistence.
type StateStore interface {
	// Save persists a value with the given ID.
	Save(id string, value any) error
	// Load retrieves a value by ID into the provided destination.
	// Returns ErrStateNotFound when nothing was saved under id.
	Load(id string, dest any) error
}

// Snapshot is the persisted form of a state machine.
type Snapshot struct {
	StateData    StateData         `json:"state_data"`
	CurrentState proto.State       `json:"current_state"`
	Transitions  []StateTransition `json:"transitions"`
}

// BaseStateMachine provides common state machine functionality.
type BaseStateMachine struct {
	store        StateStore
	stateData    StateData
	table        TransitionTable
	logger       *logx.Logger
	agentID      string
	currentState proto.State
	transitions  []StateTransition
	mu           sync.Mutex
}

// NewBaseStateMachine creates a new base state machine. store may be nil.
func NewBaseStateMachine(agentID string, initialState proto.State, store StateStore, table TransitionTable) *BaseStateMachine {
	if table == nil {
		table = TransitionTable{}
	}

	return &BaseStateMachine{
		agentID:      agentID,
		currentState: initialState,
		stateData:    make(StateData),
		transitions:  make([]StateTransition, 0),
		store:        store,
		table:        table,
		logger:       logx.NewLogger(agentID),
	}
}

// GetCurrentState returns the current state.
func (sm *BaseStateMachine) GetCurrentState() proto.State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.currentState
}

// GetStateData returns a copy of the current state data.
func (sm *BaseStateMachine) GetStateData() StateData {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return maps.Clone(sm.stateData)
}

// SetStateData sets a value in the state data.
func (sm *BaseStateMachine) SetStateData(key string, value any) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stateData[key] = value
}

// GetStateValue gets a value from the state data.
func (sm *BaseStateMachine) GetStateValue(key string) (any, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	value, exists := sm.stateData[key]
	return value, exists
}

// SetTyped stores a typed value in the state data with compile-time type safety.
func SetTyped[T any](sm *BaseStateMachine, key string, value T) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stateData[key] = value
}

// GetTyped retrieves a typed value from the state data.
// Returns false when the key is missing or holds another type.
func GetTyped[T any](sm *BaseStateMachine, key string) (T, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var zero T
	value, exists := sm.stateData[key]
	if !exists {
		return zero, false
	}
	typedValue, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typedValue, true
}

// TransitionTo moves to a new state and records the transition.
func (sm *BaseStateMachine) TransitionTo(ctx context.Context, newState proto.State, metadata map[string]any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("state transition cancelled: %w", ctx.Err())
	default:
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	oldState := sm.currentState
	if !sm.IsValidTransition(oldState, newState) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, oldState, newState)
	}

	sm.recordLocked(oldState, newState, metadata)
	sm.logger.Info("🔄 State machine transition: %s → %s", oldState, newState)

	if err := sm.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist state transition: %w", err)
	}
	return nil
}

// ForceState sets the current state without consulting the transition table.
// The change is still recorded and persisted.
func (sm *BaseStateMachine) ForceState(newState proto.State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	oldState := sm.currentState
	sm.recordLocked(oldState, newState, map[string]any{"forced": true})
	sm.logger.Warn("State forced: %s → %s", oldState, newState)

	if err := sm.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist forced state: %w", err)
	}
	return nil
}

func (sm *BaseStateMachine) recordLocked(oldState, newState proto.State, metadata map[string]any) {
	transition := StateTransition{
		FromState: oldState,
		ToState:   newState,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	sm.transitions = append(sm.transitions, transition)
	sm.currentState = newState

	sm.stateData["previous_state"] = oldState.String()
	sm.stateData["current_state"] = newState.String()
	sm.stateData["transition_at"] = transition.Timestamp
}

// GetTransitions returns the state transition history.
func (sm *BaseStateMachine) GetTransitions() []StateTransition {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return append([]StateTransition{}, sm.transitions...)
}

// GetAgentID returns the agent ID.
func (sm *BaseStateMachine) GetAgentID() string {
	return sm.agentID
}

// Persist saves the current state to durable storage.
func (sm *BaseStateMachine) Persist() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.persistLocked()
}

func (sm *BaseStateMachine) persistLocked() error {
	if sm.store == nil {
		return nil
	}

	snapshot := Snapshot{
		CurrentState: sm.currentState,
		StateData:    sm.stateData,
		Transitions:  sm.transitions,
	}
	if err := sm.store.Save(sm.agentID, snapshot); err != nil {
		return fmt.Errorf("failed to save agent state: %w", err)
	}
	return nil
}

// Initialize loads previously persisted state. A missing snapshot is not an error.
func (sm *BaseStateMachine) Initialize(_ context.Context) error {
	if sm.store == nil {
		return nil
	}

	var snapshot Snapshot
	if err := sm.store.Load(sm.agentID, &snapshot); err != nil {
		// No state found is OK - this is first run.
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load state: %w", err)
	}
	if snapshot.CurrentState == "" {
		return nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.currentState = snapshot.CurrentState
	sm.transitions = snapshot.Transitions
	if sm.transitions == nil {
		sm.transitions = make([]StateTransition, 0)
	}
	sm.stateData = make(StateData, len(snapshot.StateData))
	maps.Copy(sm.stateData, snapshot.StateData)
	return nil
}
