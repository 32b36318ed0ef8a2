package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveTaskRequest("gpt-3.5-turbo", "Solutions Architect", "print_project_scope", StatusSuccess, 2, 100, time.Second)
	rec.IncRetry("gpt-3.5-turbo", "Solutions Architect", "print_project_scope", "transient")
	rec.IncDecodeError("gpt-3.5-turbo", "Solutions Architect", "print_site_urls")
	rec.ObserveProbe(ProbeLive, 10*time.Millisecond)
	rec.ObserveProbe(ProbeDead, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.requestsTotal.WithLabelValues("gpt-3.5-turbo", "Solutions Architect", "print_project_scope", StatusSuccess)))
	assert.Equal(t, 200.0, testutil.ToFloat64(rec.promptTokens.WithLabelValues("gpt-3.5-turbo", "print_project_scope")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.retriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.probesTotal.WithLabelValues(ProbeDead)))

	totals, err := Totals(reg)
	require.NoError(t, err)
	assert.Equal(t, 2.0, totals["gippity_url_probes_total"])
	assert.Equal(t, 1.0, totals["gippity_decode_errors_total"])
	assert.Equal(t, []string{
		"gippity_decode_errors_total",
		"gippity_prompt_tokens_total",
		"gippity_task_requests_total",
		"gippity_task_retries_total",
		"gippity_url_probes_total",
	}, SortedNames(totals))

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	assert.Contains(t, buf.String(), "# TYPE gippity_task_requests_total counter")
	assert.Contains(t, buf.String(), `gippity_url_probes_total{outcome="live"} 1`)
}

func TestNopRecorder(t *testing.T) {
	rec := Nop()
	rec.ObserveTaskRequest("m", "a", "o", StatusFatal, 2, 0, 0)
	rec.IncRetry("m", "a", "o", "auth")
	rec.IncDecodeError("m", "a", "o")
	rec.ObserveProbe(ProbeError, 0)
}
