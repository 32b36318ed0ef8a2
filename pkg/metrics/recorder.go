// Package metrics records task request and URL probe metrics.
package metrics

import (
	"time"
)

// Task request outcomes.
const (
	StatusSuccess = "success"
	StatusRetried = "retried"
	StatusFatal   = "fatal"
)

// Probe outcomes.
const (
	ProbeLive  = "live"
	ProbeDead  = "dead"
	ProbeError = "error"
)

// Recorder defines the interface for recording agent metrics.
type Recorder interface {
	// ObserveTaskRequest records one completed task request (all attempts).
	ObserveTaskRequest(model, agent, operation, status string, attempts, promptTokens int, duration time.Duration)

	// IncRetry counts a transport failure that triggered the single retry.
	IncRetry(model, agent, operation, errorType string)

	// IncDecodeError counts an answer that did not match the capability's contract.
	IncDecodeError(model, agent, operation string)

	// ObserveProbe records one URL liveness probe.
	ObserveProbe(outcome string, duration time.Duration)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveTaskRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveTaskRequest(_, _, _, _ string, _, _ int, _ time.Duration) {}

// IncRetry does nothing in the no-op recorder.
func (n *NoopRecorder) IncRetry(_, _, _, _ string) {}

// IncDecodeError does nothing in the no-op recorder.
func (n *NoopRecorder) IncDecodeError(_, _, _ string) {}

// ObserveProbe does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveProbe(_ string, _ time.Duration) {}
