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

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (development, staging, production).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows plain HTTP.
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for local development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "0.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a global meter provider exporting over OTLP HTTP.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
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

	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Instrument names recorded by InjectionMetrics.
const (
	MetricInjectionDuration = "di.injection.duration"
	MetricInjectionTotal    = "di.injection.total"
	AttrFunction            = "di.function"
)

// InjectionMetrics records how long injected functions spend resolving
// their dependencies. It satisfies di.Metrics.
type InjectionMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

var _ di.Metrics = (*InjectionMetrics)(nil)

// NewInjectionMetrics creates the instruments on meter.
func NewInjectionMetrics(meter metric.Meter) (*InjectionMetrics, error) {
	duration, err := meter.Float64Histogram(MetricInjectionDuration,
		metric.WithDescription("Time spent resolving the dependencies of an injected function"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricInjectionDuration, err)
	}

	total, err := meter.Int64Counter(MetricInjectionTotal,
		metric.WithDescription("Number of injected calls that resolved their dependencies"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricInjectionTotal, err)
	}

	return &InjectionMetrics{duration: duration, total: total}, nil
}

// SaveMetric records d against the function name.
func (m *InjectionMetrics) SaveMetric(name string, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String(AttrFunction, name))
	m.duration.Record(ctx, d.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
}

// LogMetrics returns a di.Metrics that writes each timing to l at debug
// level. Useful when no collector is configured.
func LogMetrics(l *logger.Logger) di.Metrics {
	return di.MetricsFunc(func(name string, d time.Duration) {
		l.Debug("dependencies resolved", logger.Fields(
			logger.FieldFunction, name,
			logger.FieldDuration, d.Milliseconds(),
		))
	})
}
