package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/jbalderas/prefcore"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Preference metrics
	PreferenceResolvesTotal       metric.Int64Counter
	PreferenceUpdatesTotal        metric.Int64Counter
	PreferenceDefaultsSeededTotal metric.Int64Counter

	// Organization metrics
	OrgResolvesTotal  metric.Int64Counter
	OrgMutationsTotal metric.Int64Counter

	// Validation metrics
	ValidationFailuresTotal metric.Int64Counter

	// Invalidation metrics
	InvalidationsPublishedTotal metric.Int64Counter
	InvalidationsDroppedTotal   metric.Int64Counter
	ActiveEventStreams          metric.Int64UpDownCounter

	// Store metrics
	StoreOperationDuration metric.Float64Histogram
	StoreErrorsTotal       metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Preference metrics
	m.PreferenceResolvesTotal, _ = meter.Int64Counter(
		"prefcore.preferences.resolves.total",
		metric.WithDescription("Total number of preference resolutions"),
		metric.WithUnit("{resolve}"),
	)

	m.PreferenceUpdatesTotal, _ = meter.Int64Counter(
		"prefcore.preferences.updates.total",
		metric.WithDescription("Total number of successful preference updates"),
		metric.WithUnit("{update}"),
	)

	m.PreferenceDefaultsSeededTotal, _ = meter.Int64Counter(
		"prefcore.preferences.defaults_seeded.total",
		metric.WithDescription("Total number of default preference records lazily created"),
		metric.WithUnit("{record}"),
	)

	// Organization metrics
	m.OrgResolvesTotal, _ = meter.Int64Counter(
		"prefcore.organizations.resolves.total",
		metric.WithDescription("Total number of organization config resolutions"),
		metric.WithUnit("{resolve}"),
	)

	m.OrgMutationsTotal, _ = meter.Int64Counter(
		"prefcore.organizations.mutations.total",
		metric.WithDescription("Total number of successful organization config mutations"),
		metric.WithUnit("{mutation}"),
	)

	// Validation metrics
	m.ValidationFailuresTotal, _ = meter.Int64Counter(
		"prefcore.validation.failures.total",
		metric.WithDescription("Total number of rejected inputs"),
		metric.WithUnit("{failure}"),
	)

	// Invalidation metrics
	m.InvalidationsPublishedTotal, _ = meter.Int64Counter(
		"prefcore.invalidations.published.total",
		metric.WithDescription("Total number of invalidation events published"),
		metric.WithUnit("{event}"),
	)

	m.InvalidationsDroppedTotal, _ = meter.Int64Counter(
		"prefcore.invalidations.dropped.total",
		metric.WithDescription("Total number of invalidation events dropped for slow subscribers"),
		metric.WithUnit("{event}"),
	)

	m.ActiveEventStreams, _ = meter.Int64UpDownCounter(
		"prefcore.invalidations.streams.active",
		metric.WithDescription("Number of active invalidation event streams"),
		metric.WithUnit("{stream}"),
	)

	// Store metrics
	m.StoreOperationDuration, _ = meter.Float64Histogram(
		"prefcore.store.operation.duration",
		metric.WithDescription("Duration of store operations"),
		metric.WithUnit("ms"),
	)

	m.StoreErrorsTotal, _ = meter.Int64Counter(
		"prefcore.store.errors.total",
		metric.WithDescription("Total number of store operation failures"),
		metric.WithUnit("{error}"),
	)

	return m
}
