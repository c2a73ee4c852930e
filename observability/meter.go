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
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
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

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
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
	return mp, nil
}

// Metrics holds the chain engine's metric instruments.
type Metrics struct {
	chainTotal    metric.Int64Counter
	stageTotal    metric.Int64Counter
	stageDuration metric.Float64Histogram
	cacheHits     metric.Int64Counter
	retryTotal    metric.Int64Counter
	circuitOpens  metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	chainTotal, err := meter.Int64Counter("chain.total",
		metric.WithDescription("Total number of chain executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.total counter: %w", err)
	}

	stageTotal, err := meter.Int64Counter("chain.stage.total",
		metric.WithDescription("Total number of stage executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.stage.total counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("chain.stage.duration",
		metric.WithDescription("Duration of stage executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.stage.duration histogram: %w", err)
	}

	cacheHits, err := meter.Int64Counter("chain.cache.hits",
		metric.WithDescription("Stage invocations served from cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.cache.hits counter: %w", err)
	}

	retryTotal, err := meter.Int64Counter("chain.retry.total",
		metric.WithDescription("Total number of stage retries"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.retry.total counter: %w", err)
	}

	circuitOpens, err := meter.Int64Counter("chain.circuit.opens",
		metric.WithDescription("Circuit breaker open transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chain.circuit.opens counter: %w", err)
	}

	return &Metrics{
		chainTotal:    chainTotal,
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		cacheHits:     cacheHits,
		retryTotal:    retryTotal,
		circuitOpens:  circuitOpens,
	}, nil
}

// RecordChain records one chain execution.
func (m *Metrics) RecordChain(ctx context.Context, mode, status string) {
	if m == nil {
		return
	}
	m.chainTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}

// RecordStage records one stage execution with its duration.
func (m *Metrics) RecordStage(ctx context.Context, stageName, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stageName),
		attribute.String("status", status),
	)
	m.stageTotal.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCacheHit records a stage invocation served from cache.
func (m *Metrics) RecordCacheHit(ctx context.Context, stageName string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stageName)))
}

// RecordRetry records one retry of a stage.
func (m *Metrics) RecordRetry(ctx context.Context, stageName string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stageName)))
}

// RecordCircuitOpen records a circuit breaker opening for a stage.
func (m *Metrics) RecordCircuitOpen(ctx context.Context, stageName string) {
	if m == nil {
		return
	}
	m.circuitOpens.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stageName)))
}
