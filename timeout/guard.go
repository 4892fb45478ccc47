package timeout

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/actionexec/alarm"
	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
	"github.com/kbukum/actionexec/observability"
	"github.com/kbukum/actionexec/resilience"
)

// HandlerTimeout is the default limit on a single handler invocation.
const HandlerTimeout = 300 * time.Second

// Guard runs handlers so that a broken one can neither hang nor crash the
// caller: it resolves the pid, applies a watchdog, recovers panics and
// swallows errors after logging them.
type Guard struct {
	sched   *alarm.Scheduler
	limit   time.Duration
	breaker *resilience.CircuitBreaker
	metrics *observability.ExecMetrics
	log     *logger.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithHandlerTimeout overrides HandlerTimeout.
func WithHandlerTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.limit = d
		}
	}
}

// WithBreaker skips diagnostics while cb is open. Every attempted invocation
// is recorded on it; timeouts and failures count as errors.
func WithBreaker(cb *resilience.CircuitBreaker) GuardOption {
	return func(g *Guard) { g.breaker = cb }
}

// WithGuardMetrics records handler outcomes and watchdog escalations.
func WithGuardMetrics(m *observability.ExecMetrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// WithGuardLogger sets the logger.
func WithGuardLogger(l *logger.Logger) GuardOption {
	return func(g *Guard) { g.log = l }
}

// NewGuard returns a Guard whose watchdogs run on sched.
func NewGuard(sched *alarm.Scheduler, opts ...GuardOption) *Guard {
	g := &Guard{sched: sched, limit: HandlerTimeout}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get(logger.ComponentTimeout)
	}
	return g
}

// Invoke runs h against proc and reports how it went. It returns when the
// handler finishes or its watchdog fires, whichever is first; a handler
// still running after its watchdog is abandoned with a cancelled context.
func (g *Guard) Invoke(ctx context.Context, h Handler, proc Process) Outcome {
	if h == nil {
		return OutcomeSkipped
	}
	name := handlerName(h)
	log := g.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldHandler, name))

	pid, err := resolvePid(proc)
	if err != nil {
		log.Warn("cannot determine pid of timed-out process", logger.ErrorFields("resolve_pid", err))
	}
	if pid == 0 {
		log.Info("pid unknown, skipping timeout diagnostics")
		return g.record(ctx, name, OutcomeSkipped)
	}
	log = log.WithFields(logger.Fields(logger.FieldPid, pid))

	if available, err := isAvailable(ctx, h); !available {
		if err != nil {
			log.Warn("timeout handler availability check failed", logger.ErrorFields("is_available", err))
		} else {
			log.Info("timeout handler unavailable, skipping diagnostics")
		}
		return g.record(ctx, name, OutcomeSkipped)
	}
	if g.breaker != nil && !g.breaker.Allow() {
		log.Warn("timeout handler circuit open, skipping diagnostics")
		return g.record(ctx, name, OutcomeSkipped)
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanTimeoutHandler, trace.WithAttributes(
		attribute.String(observability.AttrHandler, name),
		attribute.Int(observability.AttrPid, pid),
	))
	defer span.End()

	hctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchdog, err := alarm.Start(g.sched, g.limit, alarm.InterruptFunc(cancel),
		alarm.WithName(fmt.Sprintf("timeout handler %s for pid %d", name, pid)),
		alarm.WithLogger(log),
		alarm.WithEscalationHook(func(int) {
			if g.metrics != nil {
				g.metrics.Escalated(ctx)
			}
		}),
	)
	if err != nil {
		// Scheduler already shut down: fall back to a plain deadline.
		log.Debug("handler watchdog unavailable", logger.ErrorFields("watchdog", err))
		hctx, cancel = context.WithTimeout(hctx, g.limit)
		defer cancel()
	} else {
		defer watchdog.Cancel()
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.HandlerFailed(name, fmt.Errorf("panic: %v", r))
			}
		}()
		done <- h.HandleTimeout(hctx, proc, pid)
	}()

	var outcome Outcome
	select {
	case err = <-done:
	case <-hctx.Done():
		select {
		case err = <-done:
		default:
			err = hctx.Err()
			if ctx.Err() == nil {
				outcome = OutcomeTimedOut
			}
		}
	}

	switch {
	case outcome == OutcomeTimedOut:
		log.Warn("timeout handler did not finish in time", logger.Fields(logger.FieldTimeout, g.limit.String()))
	case err != nil:
		outcome = OutcomeFailed
		log.Warn("timeout handler failed", logger.MergeWithError(logger.DurationFields("handle_timeout", time.Since(start)), err))
	default:
		outcome = OutcomeCompleted
		log.Info("timeout diagnostics captured", logger.DurationFields("handle_timeout", time.Since(start)))
	}

	if g.breaker != nil {
		if outcome == OutcomeCompleted {
			g.breaker.Record(nil)
		} else {
			g.breaker.Record(errors.HandlerFailed(name, err))
		}
	}
	if outcome != OutcomeCompleted {
		observability.SetSpanError(ctx, errors.HandlerFailed(name, err))
	}
	span.SetAttributes(attribute.String(observability.AttrOutcome, outcome.String()))
	return g.record(ctx, name, outcome)
}

func (g *Guard) record(ctx context.Context, handler string, o Outcome) Outcome {
	if g.metrics != nil {
		g.metrics.HandlerOutcome(ctx, handler, o.String())
	}
	return o
}

func resolvePid(proc Process) (pid int, err error) {
	if proc == nil {
		return 0, nil
	}
	defer func() {
		if r := recover(); r != nil {
			pid, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()
	pid = proc.Pid()
	if pid < 0 {
		pid = 0
	}
	return pid, nil
}

func isAvailable(ctx context.Context, h Handler) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.IsAvailable(ctx), nil
}

func handlerName(h Handler) (name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", h)
		}
	}()
	if name = h.Name(); name == "" {
		name = fmt.Sprintf("%T", h)
	}
	return name
}
