// Package observe provides the observability primitives of the report
// service: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider], so they can be scraped from /metrics. A
// package-level [DefaultMetrics] instance is provided for convenience; tests
// should use [NewMetrics] with their own [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/sitereport"

// Metrics holds the metric instruments of the service. All fields are safe for
// concurrent use.
type Metrics struct {
	// StageDuration tracks the latency of each pipeline stage. Attributes:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// ExtractionOutcomes counts extractions. Attributes:
	//   attribute.String("template", ...), attribute.String("method", ...),
	//   attribute.Bool("degraded", ...), attribute.String("reason", ...)
	ExtractionOutcomes metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	//   attribute.String("breaker", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// Runs counts finished pipeline runs. Attributes:
	//   attribute.String("mode", ...), attribute.String("result", ...)
	Runs metric.Int64Counter

	// ActiveRuns is the number of runs currently being driven.
	ActiveRuns metric.Int64UpDownCounter

	// Exports counts export attempts. Attributes:
	//   attribute.String("format", ...), attribute.String("status", ...)
	Exports metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   method, route (mux pattern), status_class
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries in seconds. Transcription of
// a long memo can take close to a minute.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("sitereport.pipeline.stage.duration",
		metric.WithDescription("Latency of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionOutcomes, err = m.Int64Counter("sitereport.extraction.outcomes",
		metric.WithDescription("Field extractions by template, parse method and degradation."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("sitereport.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("sitereport.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("sitereport.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("sitereport.pipeline.runs",
		metric.WithDescription("Finished pipeline runs by mode and result."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("sitereport.pipeline.active_runs",
		metric.WithDescription("Number of pipeline runs in progress."),
	); err != nil {
		return nil, err
	}
	if met.Exports, err = m.Int64Counter("sitereport.export.total",
		metric.WithDescription("Document exports by format and status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sitereport.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordExtraction records the outcome of one extraction.
func (m *Metrics) RecordExtraction(ctx context.Context, template, method string, degraded bool, reason string) {
	m.ExtractionOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("template", template),
			attribute.String("method", method),
			attribute.Bool("degraded", degraded),
			attribute.String("reason", reason),
		),
	)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordBreakerTransition records a circuit breaker moving to state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, mode, result string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("result", result),
		),
	)
}

// RecordExport records an export attempt.
func (m *Metrics) RecordExport(ctx context.Context, format, status string) {
	m.Exports.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("format", format),
			attribute.String("status", status),
		),
	)
}

// RecordHTTPRequest records one served request. route is the ServeMux
// pattern; status is folded into its class ("2xx", "4xx", ...).
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	m.HTTPRequestDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
			attribute.String("status_class", strconv.Itoa(status/100)+"xx"),
		),
	)
}
