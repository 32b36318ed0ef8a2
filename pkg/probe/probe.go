// Package probe checks whether candidate external URLs are reachable.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"autogippity/pkg/metrics"
	"autogippity/pkg/tracing"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// maxDrain is how much of a response body is read before closing so the
// connection can be reused.
const maxDrain = 4096

// ErrNotLive is set on a Result whose status was not 200.
var ErrNotLive = errors.New("url did not return 200")

// Result is the outcome of one liveness probe.
type Result struct {
	Err      error
	URL      string
	Status   int
	Duration time.Duration
}

// Live reports whether the URL answered exactly 200.
func (r Result) Live() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

// Prober issues liveness probes.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// HTTPProber probes with a single GET per URL and no retries.
type HTTPProber struct {
	client   *http.Client
	recorder metrics.Recorder
	timeout  time.Duration
}

// Option configures an HTTPProber.
type Option func(*HTTPProber)

// WithRecorder records probe outcomes.
func WithRecorder(rec metrics.Recorder) Option {
	return func(p *HTTPProber) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

// WithHTTPClient replaces the underlying client. Its Timeout is ignored in
// favour of the prober's own per-probe deadline.
func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProber) {
		if c != nil {
			p.client = c
		}
	}
}

// New creates a prober. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, opts ...Option) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &HTTPProber{
		client:   &http.Client{},
		recorder: metrics.Nop(),
		timeout:  timeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues one GET to url. Timeouts and transport failures are reported
// in Result.Err; they are never returned as errors.
func (p *HTTPProber) Probe(ctx context.Context, url string) Result {
	ctx, span := tracing.Tracer().Start(ctx, "probe.url",
		trace.WithAttributes(attribute.String("url.full", url)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	res := Result{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		res.Err = fmt.Errorf("invalid url: %w", err)
		p.observe(span, &res, time.Since(start))
		return res
	}

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = err
		p.observe(span, &res, time.Since(start))
		return res
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
	_ = resp.Body.Close()

	res.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("%w: status %d", ErrNotLive, resp.StatusCode)
	}
	p.observe(span, &res, time.Since(start))
	return res
}

func (p *HTTPProber) observe(span trace.Span, res *Result, d time.Duration) {
	res.Duration = d
	span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	switch {
	case res.Live():
		p.recorder.ObserveProbe(metrics.ProbeLive, d)
	case res.Status != 0:
		p.recorder.ObserveProbe(metrics.ProbeDead, d)
	default:
		p.recorder.ObserveProbe(metrics.ProbeError, d)
		tracing.RecordError(span, res.Err)
	}
}

// FilterLive probes every URL and returns those that answered 200, in their
// original order, together with every result in that same order. With
// concurrency above one, probes run in parallel; the output order is
// unaffected.
func FilterLive(ctx context.Context, p Prober, urls []string, concurrency int) ([]string, []Result) {
	results := make([]Result, len(urls))

	if concurrency <= 1 {
		for i, u := range urls {
			results[i] = p.Probe(ctx, u)
		}
	} else {
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for i, u := range urls {
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = p.Probe(ctx, u)
			}()
		}
		wg.Wait()
	}

	live := make([]string, 0, len(urls))
	for _, r := range results {
		if r.Live() {
			live = append(live, r.URL)
		}
	}
	return live, results
}
