package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/actionexec/alarm"
	"github.com/kbukum/actionexec/component"
	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
	"github.com/kbukum/actionexec/observability"
	"github.com/kbukum/actionexec/process"
	"github.com/kbukum/actionexec/provider"
	"github.com/kbukum/actionexec/resilience"
	"github.com/kbukum/actionexec/status"
	"github.com/kbukum/actionexec/timeout"
)

// Service executes test-action commands. It owns the shared alarm
// scheduler, the timeout handler, the concurrency limit and the
// observability hooks. Start it before use and Stop it on shutdown.
type Service struct {
	cfg        Config
	log        *logger.Logger
	sched      *alarm.Scheduler
	handlers   *timeout.Provider
	handler    timeout.Handler
	breaker    *resilience.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	runner     *process.Runner
	metrics    *observability.ExecMetrics
	stats      *Stats
	components *component.Registry
}

var _ component.Component = (*Service)(nil)

// Option configures a Service.
type Option func(*options)

type options struct {
	handlers *timeout.Provider
	meter    metric.Meter
	log      *logger.Logger
}

// WithHandlers supplies a handler provider with extra registrations.
func WithHandlers(p *timeout.Provider) Option {
	return func(o *options) { o.handlers = p }
}

// WithMeter records metrics on m instead of the global meter.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds a Service from cfg. Defaults are applied and the result is
// validated.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.handlers == nil {
		o.handlers = timeout.NewProvider()
	}
	if o.meter == nil {
		o.meter = observability.Meter()
	}
	if o.log == nil {
		o.log = logger.Get(logger.ComponentExecutor)
	}

	metrics, err := observability.NewExecMetrics(o.meter)
	if err != nil {
		return nil, errors.Internal(err)
	}

	e := cfg.Executor
	s := &Service{
		cfg:        cfg,
		log:        o.log,
		handlers:   o.handlers,
		metrics:    metrics,
		stats:      NewStats(),
		components: component.NewRegistry(),
	}
	s.sched = alarm.NewScheduler(alarm.WithSchedulerName("alarm"))

	guardOpts := []timeout.GuardOption{
		timeout.WithHandlerTimeout(e.Handler.Timeout),
		timeout.WithGuardMetrics(metrics),
	}
	if e.Breaker.MaxFailures > 0 {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "timeout-handler",
			MaxFailures: e.Breaker.MaxFailures,
			Timeout:     e.Breaker.Cooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				s.log.Warn("timeout handler circuit changed state", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
			},
		})
		guardOpts = append(guardOpts, timeout.WithBreaker(s.breaker))
	}
	guard := timeout.NewGuard(s.sched, guardOpts...)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = e.LaunchAttempts
	s.runner = process.NewRunner(s.sched,
		process.WithGuard(guard),
		process.WithLaunchRetry(retry),
		process.WithWorkDir(e.WorkDir),
		process.WithGracePeriod(e.GracePeriod),
		process.WithMetrics(metrics),
	)

	s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "executions",
		MaxConcurrent: e.MaxConcurrent,
		MaxWait:       e.QueueTimeout,
	})

	if names := strings.Split(e.Handler.Name, ","); len(names) > 1 {
		s.handler = s.handlers.Preferred(context.Background(), e.Handler.HandlerConfig, names...)
	} else {
		s.handler = s.handlers.Resolve(strings.TrimSpace(names[0]), e.Handler.HandlerConfig)
	}

	if err := s.components.Register(&telemetry{tracing: cfg.Tracing, metrics: cfg.Metrics}); err != nil {
		return nil, err
	}
	if err := s.components.Register(s.sched); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements component.Component.
func (s *Service) Name() string { return s.cfg.Name }

// Start starts telemetry export and the scheduler.
func (s *Service) Start(ctx context.Context) error {
	if err := s.components.StartAll(ctx); err != nil {
		return err
	}
	s.log.Info("executor started", logger.Fields(
		"max_concurrent", s.cfg.Executor.MaxConcurrent,
		logger.FieldHandler, s.handler.Name(),
	))
	return nil
}

// Stop cancels pending timers, waits for in-flight callbacks and flushes
// telemetry. Executions still running lose their timeout enforcement.
func (s *Service) Stop(ctx context.Context) error {
	err := s.components.StopAll(ctx)
	if cerr := provider.Close(ctx, s.handler); cerr != nil {
		s.log.Warn("failed to close timeout handler", logger.ErrorFields("close", cerr))
	}
	sum := s.stats.Summary()
	s.log.Info("executor stopped", logger.Fields(
		"total", sum.Total, "passed", sum.Passed, "failed", sum.Failed,
		"errors", sum.Errors, "timed_out", sum.TimedOut,
	))
	return err
}

// Health reports the worst health of the service's parts. A saturated
// execution pool reads as degraded.
func (s *Service) Health(ctx context.Context) component.Health {
	healths := s.components.HealthAll(ctx)
	h := component.Health{Name: s.Name(), Status: component.Overall(healths)}
	if h.Status == component.StatusHealthy && s.bulkhead.Available() == 0 && s.bulkhead.Waiting() > 0 {
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d executions queued", s.bulkhead.Waiting())
	}
	var msgs []string
	for _, ch := range healths {
		if ch.Status != component.StatusHealthy {
			msgs = append(msgs, ch.Name+": "+string(ch.Status))
		}
	}
	if len(msgs) > 0 {
		h.Message = strings.Join(msgs, ", ")
	}
	return h
}

// Stats returns a snapshot of execution statistics.
func (s *Service) Stats() Summary {
	return s.stats.Summary()
}

// Handler returns the timeout handler applied to commands without one.
func (s *Service) Handler() timeout.Handler {
	return s.handler
}

// Run executes cmd and returns its verdict.
func (s *Service) Run(ctx context.Context, cmd process.Command) status.Status {
	return s.Execute(ctx, cmd).Status
}

// Execute applies the configured defaults to cmd, waits for an execution
// slot and runs it. A caller that gives up while queued gets NOT_RUN.
func (s *Service) Execute(ctx context.Context, cmd process.Command) *process.Result {
	id := logger.ExecutionIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.ContextWithExecutionID(ctx, id)
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanExecute, trace.WithAttributes(
		attribute.String(observability.AttrExecutionID, id),
		attribute.String(observability.AttrCommand, cmd.Program()),
	))
	defer span.End()
	log := s.log.WithContext(ctx)

	cmd = s.withDefaults(cmd)

	release, err := s.bulkhead.Acquire(ctx)
	if err != nil {
		res := &process.Result{
			ID:       id,
			ExitCode: -1,
			Status:   status.NewNotRun(errors.Reason(errors.CapacityExhausted(s.bulkhead.MaxConcurrent(), err))),
		}
		log.Warn("execution not started", logger.MergeWithError(logger.Fields(logger.FieldCommand, cmd.Program()), err))
		s.stats.Record(res.Status.Kind(), 0, false)
		span.SetAttributes(attribute.String(observability.AttrStatus, res.Status.Kind().String()))
		return res
	}
	defer release()

	s.metrics.RunStarted(ctx)
	res := s.runner.Execute(ctx, cmd)
	kind := res.Status.Kind().String()
	s.metrics.RunFinished(ctx, kind, res.TimedOut, res.Duration)
	s.stats.Record(res.Status.Kind(), res.Duration, res.TimedOut)

	span.SetAttributes(
		attribute.Int(observability.AttrPid, res.Pid),
		attribute.Int(observability.AttrExitCode, res.ExitCode),
		attribute.String(observability.AttrStatus, kind),
		attribute.Bool(observability.AttrTimedOut, res.TimedOut),
	)
	if res.Status.IsError() {
		observability.SetSpanError(ctx, errors.New(errors.ErrCodeInternal, res.Status.Reason()))
	}

	log.Info("execution finished", logger.MergeWithDuration(logger.Fields(
		logger.FieldCommand, cmd.Program(),
		logger.FieldStatus, res.Status.String(),
		logger.FieldExitCode, res.ExitCode,
	), res.Duration))
	return res
}

// withDefaults fills the timeout and handler from configuration and scales
// the timeout. A negative timeout disables it explicitly.
func (s *Service) withDefaults(cmd process.Command) process.Command {
	e := s.cfg.Executor
	if cmd.Timeout == 0 {
		cmd.Timeout = e.DefaultTimeout
	}
	if cmd.Timeout > 0 {
		cmd.Timeout = scale(cmd.Timeout, e.TimeoutFactor)
	}
	if cmd.TimeoutHandler == nil {
		cmd.TimeoutHandler = s.handler
	}
	if cmd.GracePeriod == 0 {
		cmd.GracePeriod = e.GracePeriod
	}
	return cmd
}

func scale(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || factor == 1 {
		return d
	}
	return time.Duration(float64(d) * factor)
}
