// Package architect implements the solutions architect: the agent that turns a
// project description into a scope and a list of live external data sources.
package architect

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"autogippity/pkg/agent"
	"autogippity/pkg/agent/llm"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/logx"
	"autogippity/pkg/metrics"
	"autogippity/pkg/probe"
	"autogippity/pkg/proto"
)

// Role attributes.
const (
	Objective = "Gathers information and design solutions for website development"
	Position  = "Solutions Architect"
)

// Agent is the solutions architect. It is built for one run and not reused.
type Agent struct {
	*agent.BasicAgent
	tasks            *agent.TaskRequester
	prober           probe.Prober
	notifier         proto.Notifier
	logger           *logx.Logger
	store            agent.StateStore
	id               string
	taskOpts         []agent.TaskOption
	probeConcurrency int
}

// Option configures an Agent.
type Option func(*Agent)

// WithID sets the agent ID used for logs and persisted state.
func WithID(id string) Option {
	return func(a *Agent) {
		if id != "" {
			a.id = id
		}
	}
}

// WithNotifier routes AI call, unit test and issue messages.
func WithNotifier(n proto.Notifier) Option {
	return func(a *Agent) {
		if n != nil {
			a.notifier = n
		}
	}
}

// WithProber replaces the HTTP liveness prober.
func WithProber(p probe.Prober) Option {
	return func(a *Agent) {
		if p != nil {
			a.prober = p
		}
	}
}

// WithProbeConcurrency lets unit testing probe several URLs at once.
// The filtered order is unchanged.
func WithProbeConcurrency(n int) Option {
	return func(a *Agent) { a.probeConcurrency = n }
}

// WithStateStore persists every transition.
func WithStateStore(s agent.StateStore) Option {
	return func(a *Agent) { a.store = s }
}

// WithRecorder records task request metrics.
func WithRecorder(rec metrics.Recorder) Option {
	return func(a *Agent) {
		a.taskOpts = append(a.taskOpts, agent.WithRecorder(rec))
	}
}

// WithTaskOptions passes options through to the task requester.
func WithTaskOptions(opts ...agent.TaskOption) Option {
	return func(a *Agent) {
		a.taskOpts = append(a.taskOpts, opts...)
	}
}

// New creates an architect in DISCOVERY that talks to the model through client.
func New(client llm.LLMClient, opts ...Option) *Agent {
	a := &Agent{
		id:               "architect-" + uuid.NewString()[:8],
		notifier:         proto.Discard,
		prober:           probe.New(probe.DefaultTimeout),
		probeConcurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.BasicAgent = agent.NewBasicAgent(a.id, Objective, Position, proto.StateDiscovery, a.store, architectTransitions)
	a.logger = logx.NewLogger(a.id)
	taskOpts := append([]agent.TaskOption{agent.WithNotifier(a.notifier)}, a.taskOpts...)
	a.tasks = agent.NewTaskRequester(client, taskOpts...)
	return a
}

// Transitions returns the recorded state history.
func (a *Agent) Transitions() []agent.StateTransition {
	return a.GetTransitions()
}

// Execute drives the fact sheet through discovery and unit testing until the
// agent is FINISHED. A fatal task error stops the run where it is: the fact
// sheet keeps what was already written and the state is not rolled back.
func (a *Agent) Execute(ctx context.Context, fs *factsheet.FactSheet) error {
	if fs == nil {
		return fmt.Errorf("architect %s: nil fact sheet", a.id)
	}
	ctx = logx.WithAgentID(ctx, a.id)

	for {
		current := a.GetCurrentState()
		if current.IsTerminal() {
			a.logger.Info("architect finished")
			return nil
		}

		next, err := a.processState(ctx, fs, current)
		if err != nil {
			a.SetStateData(StateKeyFailedState, current.String())
			a.SetStateData(StateKeyFailureReason, err.Error())
			a.logger.Error("state %s failed: %v", current, err)
			if perr := a.Persist(); perr != nil {
				a.logger.Warn("failed to persist failure of %s: %v", current, perr)
			}
			return fmt.Errorf("architect %s in %s: %w", a.id, current, err)
		}

		if err := a.TransitionTo(ctx, next, nil); err != nil {
			return fmt.Errorf("architect %s: %w", a.id, err)
		}
	}
}

// processState runs the entry action for state and returns the next state.
func (a *Agent) processState(ctx context.Context, fs *factsheet.FactSheet, state proto.State) (proto.State, error) {
	switch state {
	case proto.StateDiscovery:
		return a.handleDiscovery(ctx, fs)
	case proto.StateUnitTesting:
		return a.handleUnitTesting(ctx, fs)
	default:
		// WORKING and anything unknown cannot stall the loop.
		logx.Debug(ctx, "architect", "no handler for state %s, finishing", state)
		return proto.StateFinished, nil
	}
}
