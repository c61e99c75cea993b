package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the application metrics:
// - HTTP traffic of the service API
// - step latency, outcomes and concurrency
// - provider polls by observed job state
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Step metrics
	StepDuration      metric.Float64Histogram
	StepsTotal        metric.Int64Counter
	StepFailuresTotal metric.Int64Counter
	StepsActive       metric.Int64UpDownCounter

	// Engine metrics
	PollsTotal       metric.Int64Counter
	SubmissionsTotal metric.Int64Counter
}

// NewMetrics creates all metrics on a private Prometheus registry and
// returns the handler that serves it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("linkrunner")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Step metrics
	m.StepDuration, err = meter.Float64Histogram(
		"step_duration_seconds",
		metric.WithDescription("Step execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepsTotal, err = meter.Int64Counter(
		"steps_total",
		metric.WithDescription("Total number of steps executed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepFailuresTotal, err = meter.Int64Counter(
		"step_failures_total",
		metric.WithDescription("Total number of failed steps by error kind"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StepsActive, err = meter.Int64UpDownCounter(
		"steps_active",
		metric.WithDescription("Number of currently running steps"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Engine metrics
	m.PollsTotal, err = meter.Int64Counter(
		"job_polls_total",
		metric.WithDescription("Total number of provider status polls by observed state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"job_submissions_total",
		metric.WithDescription("Total number of provider submissions"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordHTTPRequest records HTTP request metrics. route is the matched
// route pattern, never the raw request path; empty means no route matched.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		routeAttr(route),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordStepStarted records a step starting.
func (m *Metrics) RecordStepStarted(ctx context.Context, step string) {
	m.StepsActive.Add(ctx, 1, metric.WithAttributes(stepAttr(step)))
}

// RecordStepCompleted records a step finishing. kind is empty on success.
func (m *Metrics) RecordStepCompleted(ctx context.Context, step string, success bool, kind string, durationSeconds float64) {
	attrs := metric.WithAttributes(stepAttr(step), successAttr(success))
	m.StepDuration.Record(ctx, durationSeconds, attrs)
	m.StepsTotal.Add(ctx, 1, attrs)
	m.StepsActive.Add(ctx, -1, metric.WithAttributes(stepAttr(step)))

	if !success {
		m.StepFailuresTotal.Add(ctx, 1, metric.WithAttributes(stepAttr(step), kindAttr(kind)))
	}
}

// RecordSubmission records a job submitted to a provider.
func (m *Metrics) RecordSubmission(ctx context.Context, adapter string, immediate bool) {
	m.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(adapterAttr(adapter), immediateAttr(immediate)))
}

// RecordPoll records one status poll and the state it observed.
func (m *Metrics) RecordPoll(ctx context.Context, adapter, state string) {
	m.PollsTotal.Add(ctx, 1, metric.WithAttributes(adapterAttr(adapter), stateAttr(state)))
}
