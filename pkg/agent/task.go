package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"autogippity/pkg/agent/llm"
	"autogippity/pkg/agent/llmerrors"
	"autogippity/pkg/capabilities"
	"autogippity/pkg/logx"
	"autogippity/pkg/metrics"
	"autogippity/pkg/proto"
	"autogippity/pkg/tracing"
	"autogippity/pkg/utils"
)

const (
	// maxTaskAttempts is the first call plus exactly one retry.
	maxTaskAttempts = 2

	promptLogChars = 400
)

// Task is one capability invocation on behalf of an agent.
type Task struct {
	// AgentLabel tags the request in operator messages, usually the agent's position.
	AgentLabel string
	// Operation labels the request; defaults to the capability name.
	Operation  string
	Capability capabilities.Capability
	// Input is the literal context appended to the instruction.
	Input string
}

func (t Task) operation() string {
	if t.Operation != "" {
		return t.Operation
	}
	return t.Capability.Name
}

// TaskRequester sends capability prompts to a model gateway with a
// retry-once policy.
type TaskRequester struct {
	client      llm.LLMClient
	notifier    proto.Notifier
	recorder    metrics.Recorder
	tokens      *utils.TokenCounter
	logger      *logx.Logger
	maxTokens   int
	temperature float64
}

// TaskOption configures a TaskRequester.
type TaskOption func(*TaskRequester)

// WithNotifier sets where AI call announcements go.
func WithNotifier(n proto.Notifier) TaskOption {
	return func(r *TaskRequester) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) TaskOption {
	return func(r *TaskRequester) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithTokenCounter enables prompt token estimates in logs and metrics.
func WithTokenCounter(tc *utils.TokenCounter) TaskOption {
	return func(r *TaskRequester) { r.tokens = tc }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) TaskOption {
	return func(r *TaskRequester) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// WithTemperature overrides the sampling temperature. Zero keeps the default.
func WithTemperature(t float64) TaskOption {
	return func(r *TaskRequester) {
		if t > 0 {
			r.temperature = t
		}
	}
}

// NewTaskRequester creates a requester over client.
func NewTaskRequester(client llm.LLMClient, opts ...TaskOption) *TaskRequester {
	r := &TaskRequester{
		client:      client,
		notifier:    proto.Discard,
		recorder:    metrics.Nop(),
		logger:      logx.NewLogger("task"),
		maxTokens:   llm.DefaultMaxTokens,
		temperature: llm.TemperatureFunctionPrinter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequestTask renders the capability into a single system message, announces
// the call, and returns the model's raw text. A failed call is retried once
// with the identical message; a second failure wraps ErrTaskFailed.
func (r *TaskRequester) RequestTask(ctx context.Context, task Task) (string, error) {
	op := task.operation()
	model := r.client.GetModelName()

	ctx, span := tracing.Tracer().Start(ctx, "task.request",
		trace.WithAttributes(
			attribute.String("gippity.agent", task.AgentLabel),
			attribute.String("gippity.operation", op),
			attribute.String("gippity.model", model),
		))
	defer span.End()

	prompt := task.Capability.Render(task.Input)
	promptTokens := r.tokens.CountTokens(prompt)
	span.SetAttributes(attribute.Int("gippity.prompt_tokens", promptTokens))

	r.notifier.Notify(proto.AgentMessage{
		Position:  task.AgentLabel,
		Statement: op,
		Kind:      proto.MessageAICall,
	})
	logx.Debug(ctx, "task", "%s: %s (%d tokens) prompt=%q", task.AgentLabel, op, promptTokens,
		llmerrors.SanitizePrompt(prompt, promptLogChars))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage(prompt)})
	req.MaxTokens = r.maxTokens
	req.Temperature = r.temperature

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxTaskAttempts; attempt++ {
		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			status := metrics.StatusSuccess
			if attempt > 1 {
				status = metrics.StatusRetried
			}
			r.recorder.ObserveTaskRequest(model, task.AgentLabel, op, status, attempt, promptTokens, time.Since(start))
			span.SetAttributes(attribute.Int("gippity.attempts", attempt))
			logx.Debug(ctx, "task", "%s: %s answered in %s", task.AgentLabel, op, time.Since(start))
			return resp.Content, nil
		}

		lastErr = llmerrors.Classify(err, "completion failed")
		if attempt == maxTaskAttempts || ctx.Err() != nil {
			break
		}
		r.recorder.IncRetry(model, task.AgentLabel, op, llmerrors.TypeOf(lastErr).String())
		r.logger.Warn("%s: %s failed, retrying once: %v", task.AgentLabel, op, lastErr)
	}

	r.recorder.ObserveTaskRequest(model, task.AgentLabel, op, metrics.StatusFatal, maxTaskAttempts, promptTokens, time.Since(start))
	err := fmt.Errorf("%w: %s: %w", ErrTaskFailed, op, lastErr)
	tracing.RecordError(span, err)
	r.notifier.Notify(proto.AgentMessage{
		Position:  task.AgentLabel,
		Statement: fmt.Sprintf("%s failed: %v", op, lastErr),
		Kind:      proto.MessageIssue,
	})
	return "", err
}

// validator is implemented by decoded results that carry their own invariant.
type validator interface {
	Validate() error
}

// RequestTaskDecoded runs RequestTask and decodes the answer as JSON into T.
// Malformed JSON and values failing T's Validate method return a *DecodeError.
func RequestTaskDecoded[T any](ctx context.Context, r *TaskRequester, task Task) (T, error) {
	var out T

	raw, err := r.RequestTask(ctx, task)
	if err != nil {
		return out, err
	}

	op := task.operation()
	decodeErr := func(cause error) (T, error) {
		var zero T
		r.recorder.IncDecodeError(r.client.GetModelName(), task.AgentLabel, op)
		r.logger.Error("%s: %s answer did not decode: %v", task.AgentLabel, op, cause)
		return zero, &DecodeError{Operation: op, Raw: raw, Err: cause}
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return decodeErr(err)
	}
	if v, ok := any(&out).(validator); ok {
		if err := v.Validate(); err != nil {
			return decodeErr(err)
		}
	}
	return out, nil
}
