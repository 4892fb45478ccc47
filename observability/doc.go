// Package observability wires OpenTelemetry tracing and metrics for the
// executor.
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("actionexec"))
//	defer tp.Shutdown(ctx)
//
//	metrics, err := observability.NewExecMetrics(observability.Meter())
//	metrics.RunFinished(ctx, "passed", false, elapsed)
//
// Without InitTracer / InitMeter the global otel providers are no-ops, so
// spans and instruments cost nothing.
package observability
