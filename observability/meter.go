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

	"github.com/kbukum/actionexec/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// Enabled turns on OTLP export. When false instruments are no-ops.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment.
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows plain HTTP.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName: serviceName,
		Environment: "development",
		Endpoint:    "localhost:4318",
		Insecure:    true,
		Interval:    15 * time.Second,
	}
}

// InitMeter installs a global MeterProvider exporting over OTLP HTTP.
// The caller shuts the provider down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
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
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns the module meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// ExecMetrics holds the executor's metric instruments.
type ExecMetrics struct {
	executions      metric.Int64Counter
	duration        metric.Float64Histogram
	active          metric.Int64UpDownCounter
	timeouts        metric.Int64Counter
	handlerOutcomes metric.Int64Counter
	launchRetries   metric.Int64Counter
	escalations     metric.Int64Counter
}

// NewExecMetrics creates metric instruments on the given meter.
func NewExecMetrics(meter metric.Meter) (*ExecMetrics, error) {
	m := &ExecMetrics{}
	var err error

	if m.executions, err = meter.Int64Counter("actionexec.executions",
		metric.WithDescription("Completed executions by resulting status"),
	); err != nil {
		return nil, fmt.Errorf("creating executions counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("actionexec.duration",
		metric.WithDescription("Wall-clock duration of executions"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	if m.active, err = meter.Int64UpDownCounter("actionexec.active",
		metric.WithDescription("Child processes currently running"),
	); err != nil {
		return nil, fmt.Errorf("creating active counter: %w", err)
	}
	if m.timeouts, err = meter.Int64Counter("actionexec.timeouts",
		metric.WithDescription("Executions killed by their timeout"),
	); err != nil {
		return nil, fmt.Errorf("creating timeouts counter: %w", err)
	}
	if m.handlerOutcomes, err = meter.Int64Counter("actionexec.timeout_handler.outcomes",
		metric.WithDescription("Timeout handler invocations by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating handler outcome counter: %w", err)
	}
	if m.launchRetries, err = meter.Int64Counter("actionexec.launch.retries",
		metric.WithDescription("Launch attempts retried after a transient failure"),
	); err != nil {
		return nil, fmt.Errorf("creating launch retry counter: %w", err)
	}
	if m.escalations, err = meter.Int64Counter("actionexec.alarm.escalations",
		metric.WithDescription("Not-responding warnings raised by alarms"),
	); err != nil {
		return nil, fmt.Errorf("creating escalation counter: %w", err)
	}
	return m, nil
}

// RunStarted increments the active execution count.
func (m *ExecMetrics) RunStarted(ctx context.Context) {
	m.active.Add(ctx, 1)
}

// RunFinished decrements active executions and records the result.
func (m *ExecMetrics) RunFinished(ctx context.Context, status string, timedOut bool, d time.Duration) {
	m.active.Add(ctx, -1)
	m.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	if timedOut {
		m.timeouts.Add(ctx, 1)
	}
}

// HandlerOutcome records one timeout handler invocation.
func (m *ExecMetrics) HandlerOutcome(ctx context.Context, handler, outcome string) {
	m.handlerOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("outcome", outcome),
	))
}

// LaunchRetried records a retried launch attempt.
func (m *ExecMetrics) LaunchRetried(ctx context.Context) {
	m.launchRetries.Add(ctx, 1)
}

// Escalated records a not-responding warning.
func (m *ExecMetrics) Escalated(ctx context.Context) {
	m.escalations.Add(ctx, 1)
}
