package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/seqkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ExportConfig
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns development defaults exporting every 15 seconds.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ExportConfig: defaultExportConfig(serviceName),
		Interval:     15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it globally.
// The returned MeterProvider should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := config.resource()
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric instrument names.
const (
	MetricSourcePulls   = "seqkit.source.pulls"
	MetricPullDuration  = "seqkit.source.pull.duration"
	MetricCacheReads    = "seqkit.cursor.cache_reads"
	MetricCursorsActive = "seqkit.cursors.active"
	MetricRetryRestarts = "seqkit.retry.restarts"
	MetricFailures      = "seqkit.failures"
	attrConnector       = "connector"
	attrKind            = "kind"
	attrComponent       = "component"
	attrAttempt         = "attempt"
)

// Metrics holds the OpenTelemetry instruments recorded by multicast and retry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sourcePulls   metric.Int64Counter
	pullDuration  metric.Float64Histogram
	cacheReads    metric.Int64Counter
	cursorsActive metric.Int64UpDownCounter
	retryRestarts metric.Int64Counter
	failures      metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	sourcePulls, err := meter.Int64Counter(MetricSourcePulls,
		metric.WithDescription("Physical advances of wrapped source iterators"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricSourcePulls, err)
	}

	pullDuration, err := meter.Float64Histogram(MetricPullDuration,
		metric.WithDescription("Duration of source advances in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricPullDuration, err)
	}

	cacheReads, err := meter.Int64Counter(MetricCacheReads,
		metric.WithDescription("Cursor reads served from the shared item log"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCacheReads, err)
	}

	cursorsActive, err := meter.Int64UpDownCounter(MetricCursorsActive,
		metric.WithDescription("Number of open multicast cursors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricCursorsActive, err)
	}

	retryRestarts, err := meter.Int64Counter(MetricRetryRestarts,
		metric.WithDescription("Iterations restarted by a retry policy"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRetryRestarts, err)
	}

	failures, err := meter.Int64Counter(MetricFailures,
		metric.WithDescription("Terminal failures by component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricFailures, err)
	}

	return &Metrics{
		sourcePulls:   sourcePulls,
		pullDuration:  pullDuration,
		cacheReads:    cacheReads,
		cursorsActive: cursorsActive,
		retryRestarts: retryRestarts,
		failures:      failures,
	}, nil
}

// RecordPull records one physical source advance and the kind of record it produced.
func (m *Metrics) RecordPull(ctx context.Context, connector, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sourcePulls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrConnector, connector),
		attribute.String(attrKind, kind),
	))
	m.pullDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrConnector, connector),
	))
}

// RecordCacheRead records a cursor read served without touching the source.
func (m *Metrics) RecordCacheRead(ctx context.Context, connector string) {
	if m == nil {
		return
	}
	m.cacheReads.Add(ctx, 1, metric.WithAttributes(attribute.String(attrConnector, connector)))
}

// RecordCursorOpen increments the open cursor count.
func (m *Metrics) RecordCursorOpen(ctx context.Context, connector string) {
	if m == nil {
		return
	}
	m.cursorsActive.Add(ctx, 1, metric.WithAttributes(attribute.String(attrConnector, connector)))
}

// RecordCursorClose decrements the open cursor count.
func (m *Metrics) RecordCursorClose(ctx context.Context, connector string) {
	if m == nil {
		return
	}
	m.cursorsActive.Add(ctx, -1, metric.WithAttributes(attribute.String(attrConnector, connector)))
}

// RecordRestart records a retry policy restarting its source.
func (m *Metrics) RecordRestart(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.retryRestarts.Add(ctx, 1, metric.WithAttributes(attribute.Int(attrAttempt, attempt)))
}

// RecordFailure records a terminal failure observed by a component.
func (m *Metrics) RecordFailure(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrComponent, component)))
}
