package metrics

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	promptTokens    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	probesTotal     *prometheus.CounterVec
	probeDuration   prometheus.Histogram
}

// NewPrometheusRecorder registers the gippity metrics on reg.
// A nil reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gippity_task_requests_total",
				Help: "Total number of task requests by model, agent, operation, and status",
			},
			[]string{"model", "agent", "operation", "status"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gippity_task_retries_total",
				Help: "Transport failures that triggered the single task retry",
			},
			[]string{"model", "agent", "operation", "error_type"},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gippity_decode_errors_total",
				Help: "Model answers that failed to decode into the expected shape",
			},
			[]string{"model", "agent", "operation"},
		),
		promptTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gippity_prompt_tokens_total",
				Help: "Estimated prompt tokens sent, counted once per attempt",
			},
			[]string{"model", "operation"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gippity_task_request_duration_seconds",
				Help:    "Duration of task requests in seconds, including the retry",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "operation"},
		),
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gippity_url_probes_total",
				Help: "URL liveness probes by outcome",
			},
			[]string{"outcome"},
		),
		probeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gippity_url_probe_duration_seconds",
				Help:    "Duration of URL liveness probes in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// ObserveTaskRequest records metrics for a completed task request.
func (p *PrometheusRecorder) ObserveTaskRequest(model, agent, operation, status string, attempts, promptTokens int, duration time.Duration) {
	p.requestsTotal.WithLabelValues(model, agent, operation, status).Inc()
	p.promptTokens.WithLabelValues(model, operation).Add(float64(promptTokens * attempts))
	p.requestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// IncRetry increments the retry counter.
func (p *PrometheusRecorder) IncRetry(model, agent, operation, errorType string) {
	p.retriesTotal.WithLabelValues(model, agent, operation, errorType).Inc()
}

// IncDecodeError increments the decode failure counter.
func (p *PrometheusRecorder) IncDecodeError(model, agent, operation string) {
	p.decodeErrors.WithLabelValues(model, agent, operation).Inc()
}

// ObserveProbe records one URL probe.
func (p *PrometheusRecorder) ObserveProbe(outcome string, duration time.Duration) {
	p.probesTotal.WithLabelValues(outcome).Inc()
	p.probeDuration.Observe(duration.Seconds())
}

// WriteText writes every metric family from g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Totals sums each counter family in g across its label sets. It backs the
// one-line run summary printed by the CLI.
func Totals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}

// SortedNames returns the keys of totals in lexical order.
func SortedNames(totals map[string]float64) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
