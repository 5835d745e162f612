// Package observe provides application-wide observability primitives for
// glyphchat: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all glyphchat metrics.
const meterName = "github.com/MrWong99/glyphchat"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// StageDuration tracks time spent in each chat pipeline stage. Use with:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// ProviderDuration tracks collaborator call latency. Use with:
	//   attribute.String("kind", ...)  // llm, embeddings, search, ...
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts collaborator calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Messages counts handled messages by final outcome. Use with:
	//   attribute.String("outcome", ...)
	Messages metric.Int64Counter

	// Degradations counts context slots replaced by their placeholder. Use with:
	//   attribute.String("slot", ...)
	Degradations metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TaskFailures counts background task failures. Use with attributes:
	//   attribute.String("task", ...), attribute.String("reason", ...)
	TaskFailures metric.Int64Counter

	// --- Gauges ---

	// ActivePipelines tracks messages currently being answered.
	ActivePipelines metric.Int64UpDownCounter

	// ActiveTasks tracks in-flight background tasks.
	ActiveTasks metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// hosted text-generation round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("glyphchat.pipeline.stage.duration",
		metric.WithDescription("Time spent in each chat pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("glyphchat.provider.duration",
		metric.WithDescription("Latency of collaborator calls by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("glyphchat.provider.requests",
		metric.WithDescription("Total collaborator requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Messages, err = m.Int64Counter("glyphchat.messages",
		metric.WithDescription("Handled messages by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Degradations, err = m.Int64Counter("glyphchat.context.degradations",
		metric.WithDescription("Context slots that fell back to their placeholder."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("glyphchat.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TaskFailures, err = m.Int64Counter("glyphchat.task.failures",
		metric.WithDescription("Background task failures by task name and reason."),
	); err != nil {
		return nil, err
	}

	if met.ActivePipelines, err = m.Int64UpDownCounter("glyphchat.active_pipelines",
		metric.WithDescription("Messages currently being answered."),
	); err != nil {
		return nil, err
	}
	if met.ActiveTasks, err = m.Int64UpDownCounter("glyphchat.active_tasks",
		metric.WithDescription("In-flight background tasks."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("glyphchat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
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
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderCall records one collaborator call: its latency, the request
// counter, and on failure the error counter.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordMessage counts a handled message by outcome.
func (m *Metrics) RecordMessage(ctx context.Context, outcome string) {
	m.Messages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDegradation counts a context slot that fell back to its placeholder.
func (m *Metrics) RecordDegradation(ctx context.Context, slot string) {
	m.Degradations.Add(ctx, 1, metric.WithAttributes(attribute.String("slot", slot)))
}

// RecordTaskFailure counts a failed background task.
func (m *Metrics) RecordTaskFailure(ctx context.Context, task, reason string) {
	m.TaskFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("reason", reason),
	))
}
