package executor

import (
	"context"
	stderrors "errors"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/actionexec/component"
	"github.com/kbukum/actionexec/observability"
)

// telemetry installs the OTLP tracer and meter providers on Start and
// flushes them on Stop. Disabled exporters leave the global no-op
// providers in place.
type telemetry struct {
	tracing observability.TracerConfig
	metrics observability.MeterConfig

	mu sync.Mutex
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var _ component.Component = (*telemetry)(nil)

func (t *telemetry) Name() string { return "telemetry" }

func (t *telemetry) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tracing.Enabled && t.tp == nil {
		tp, err := observability.InitTracer(ctx, t.tracing)
		if err != nil {
			return err
		}
		t.tp = tp
	}
	if t.metrics.Enabled && t.mp == nil {
		mp, err := observability.InitMeter(ctx, t.metrics)
		if err != nil {
			return err
		}
		t.mp = mp
	}
	return nil
}

func (t *telemetry) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
		t.tp = nil
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
		t.mp = nil
	}
	return stderrors.Join(errs...)
}

func (t *telemetry) Health(context.Context) component.Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	if (t.tracing.Enabled && t.tp == nil) || (t.metrics.Enabled && t.mp == nil) {
		h.Status = component.StatusDegraded
		h.Message = "exporters not started"
	}
	return h
}
