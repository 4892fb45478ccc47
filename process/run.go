package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/actionexec/alarm"
	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
	"github.com/kbukum/actionexec/observability"
	"github.com/kbukum/actionexec/resilience"
	"github.com/kbukum/actionexec/status"
	"github.com/kbukum/actionexec/timeout"
)

// DefaultGracePeriod bounds the output drain after a child is killed.
const DefaultGracePeriod = 5 * time.Second

// Runner launches commands and turns their outcome into a Status. A Runner
// is safe for concurrent use; all executions share its scheduler.
type Runner struct {
	sched   *alarm.Scheduler
	guard   *timeout.Guard
	log     *logger.Logger
	retry   resilience.RetryConfig
	dir     string
	grace   time.Duration
	metrics *observability.ExecMetrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithGuard sets the guard that runs timeout handlers.
func WithGuard(g *timeout.Guard) Option {
	return func(r *Runner) { r.guard = g }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithLaunchRetry configures retries of transient launch failures. Only
// errors such as ETXTBSY are retried, and only when RetryIf also accepts them.
func WithLaunchRetry(cfg resilience.RetryConfig) Option {
	return func(r *Runner) { r.retry = cfg }
}

// WithWorkDir sets the working directory for commands without their own.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithMetrics records launch retries.
func WithMetrics(m *observability.ExecMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner returns a Runner whose timeouts are scheduled on sched.
func NewRunner(sched *alarm.Scheduler, opts ...Option) *Runner {
	r := &Runner{
		sched: sched,
		retry: resilience.DefaultRetryConfig(),
		grace: DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get(logger.ComponentProcess)
	}
	if r.guard == nil {
		r.guard = timeout.NewGuard(sched, timeout.WithGuardMetrics(r.metrics))
	}
	r.retry.RetryIf = launchRetryIf(r.retry.RetryIf)
	return r
}

func launchRetryIf(retryIf func(error) bool) func(error) bool {
	if retryIf == nil {
		retryIf = resilience.DefaultRetryIf
	}
	return func(err error) bool {
		return isTransientLaunchError(err) && retryIf(err)
	}
}

// Run executes cmd and returns its verdict.
func (r *Runner) Run(ctx context.Context, cmd Command) status.Status {
	return r.Execute(ctx, cmd).Status
}

// Execute runs cmd to completion and reports the details. Launch failures,
// timeouts and cancellation of ctx produce ERROR results; otherwise the
// verdict comes from cmd.Policy. The child and both of its streams are
// released before Execute returns.
func (r *Runner) Execute(ctx context.Context, cmd Command) *Result {
	start := time.Now()
	res := &Result{ID: logger.ExecutionIDFromContext(ctx), ExitCode: -1}
	if res.ID == "" {
		res.ID = uuid.NewString()
		ctx = logger.ContextWithExecutionID(ctx, res.ID)
	}
	defer func() { res.Duration = time.Since(start) }()

	log := r.log.WithContext(ctx)
	program := cmd.Program()
	if program == "" {
		res.Status = status.FromError(errors.InvalidCommand("empty command"))
		return res
	}
	log = log.WithFields(logger.Fields(logger.FieldCommand, program))

	ex, err := r.launch(ctx, cmd, log)
	if err != nil {
		log.Warn("failed to launch process", logger.ErrorFields("launch", err))
		res.Status = status.FromError(err)
		return res
	}
	defer ex.release()

	res.Pid = ex.handle.Pid()
	log = log.WithFields(logger.Fields(logger.FieldPid, res.Pid))
	log.Debug("process started", logger.Fields("args", cmd.Args[1:], "dir", ex.cmd.Dir))

	interrupt := alarm.NewInterrupter()
	var task *timeoutTask
	if cmd.Timeout > 0 {
		task, err = armTimeout(r.sched, cmd.Timeout, func() timeout.Outcome {
			log.Warn("process exceeded its timeout", logger.Fields(logger.FieldTimeout, cmd.Timeout.String()))
			return r.guard.Invoke(ctx, cmd.TimeoutHandler, ex.handle)
		}, interrupt)
		if err != nil {
			log.Error("cannot arm timeout, killing process", logger.ErrorFields("arm_timeout", err))
			r.kill(ex, cmd, log)
			res.Status = status.FromError(err)
			return res
		}
		defer task.cancel()
	}

	exited := ex.await(ctx, interrupt.C(), func() { task.cancel() })
	// The task state decides: a timer that fired before the exit was seen
	// wins even if the handler's diagnostics made the child exit.
	timedOut := task.fired()
	task.wait()
	if !exited || timedOut {
		r.kill(ex, cmd, log)
		task.cancel()
		res.TimedOut = timedOut
		res.Handler = task.outcome()
		r.collect(res, ex)
		if timedOut {
			res.Status = status.FromError(errors.TimedOut(program, cmd.Timeout))
		} else {
			res.Status = status.FromError(errors.Interrupted(program, context.Cause(ctx)))
		}
		log.Warn("process killed", logger.Fields(logger.FieldStatus, res.Status.String()))
		return res
	}

	r.settle(ex, cmd, log)
	res.Handler = task.outcome()
	r.collect(res, ex)
	if ex.cmd.ProcessState == nil {
		res.Status = status.FromError(errors.Internal(ex.exitErr))
		return res
	}
	res.Status = cmd.Policy.Resolve(res.ExitCode, ex.scanner.Status())
	log.Debug("process finished", logger.MergeWithDuration(logger.Fields(
		logger.FieldExitCode, res.ExitCode,
		logger.FieldStatus, res.Status.String(),
	), time.Since(start)))
	return res
}

func (r *Runner) launch(ctx context.Context, cmd Command, log *logger.Logger) (*execution, error) {
	ex, err := resilience.Retry(ctx, r.retry, func(attempt int) (*execution, error) {
		if attempt > 1 {
			log.Debug("retrying launch", logger.Fields("attempt", attempt))
			if r.metrics != nil {
				r.metrics.LaunchRetried(ctx)
			}
		}
		return r.start(cmd)
	})
	if err != nil && !errors.IsAppError(err) {
		return nil, errors.Interrupted(cmd.Program(), err)
	}
	return ex, err
}

func (r *Runner) start(cmd Command) (*execution, error) {
	program := cmd.Program()
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, errors.LaunchFailed(program, err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, errors.LaunchFailed(program, err)
	}

	c := exec.Command(program, cmd.Args[1:]...) //nolint:gosec // running arbitrary commands is the point
	c.Dir = cmd.Dir
	if c.Dir == "" {
		c.Dir = r.dir
	}
	c.Env = envList(cmd.Env)
	c.Stdout = outW
	c.Stderr = errW
	configure(c)

	err = c.Start()
	outW.Close()
	errW.Close()
	if err != nil {
		outR.Close()
		errR.Close()
		return nil, errors.LaunchFailed(program, err)
	}

	ex := &execution{
		cmd:     c,
		handle:  &Handle{proc: c.Process},
		stdout:  outR,
		stderr:  errR,
		scanner: NewStatusScanner(),
		exited:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	ex.outCopier = NewStreamCopier("stdout", outR, cmd.Stdout, ex.scanner.ScanLine, r.log)
	ex.errCopier = NewStreamCopier("stderr", errR, cmd.Stderr, ex.scanner.ScanLine, r.log)
	ex.outCopier.Start()
	ex.errCopier.Start()

	go func() {
		ex.exitErr = c.Wait()
		ex.handle.markExited()
		close(ex.exited)
	}()
	go func() {
		ex.outCopier.Wait()
		ex.errCopier.Wait()
		close(ex.drained)
	}()
	return ex, nil
}

// kill terminates the child and waits a bounded time for it to exit and
// for its output to drain.
func (r *Runner) kill(ex *execution, cmd Command, log *logger.Logger) {
	if err := ex.handle.Kill(); err != nil {
		log.Warn("failed to kill process", logger.ErrorFields("kill", err))
	}
	grace := r.graceFor(cmd)
	if !ex.awaitFor(grace) {
		log.Warn("process output not drained within grace period", logger.Fields("grace", grace.String()))
	}
}

// settle gives the streams of an exited child the grace period to reach
// EOF. Output still open after that is held by a descendant that outlived
// the child: its process group is killed and the pipes are closed.
func (r *Runner) settle(ex *execution, cmd Command, log *logger.Logger) {
	grace := r.graceFor(cmd)
	if ex.awaitFor(grace) {
		return
	}
	log.Warn("process exited with its output still open, killing process group", logger.Fields("grace", grace.String()))
	if err := ex.handle.Kill(); err != nil {
		log.Warn("failed to kill process group", logger.ErrorFields("kill", err))
	}
	ex.release()
	if !ex.awaitFor(grace) {
		log.Warn("process output not drained after closing pipes")
	}
}

func (r *Runner) graceFor(cmd Command) time.Duration {
	if cmd.GracePeriod > 0 {
		return cmd.GracePeriod
	}
	return r.grace
}

func (r *Runner) collect(res *Result, ex *execution) {
	if ex.isExited() && ex.cmd.ProcessState != nil {
		res.ExitCode = exitCode(ex.cmd.ProcessState)
	}
	res.StdoutBytes = ex.outCopier.Bytes()
	res.StderrBytes = ex.errCopier.Bytes()
}

// execution is the state of one launched child. Only the goroutine running
// Execute touches its wait bookkeeping.
type execution struct {
	cmd       *exec.Cmd
	handle    *Handle
	stdout    *os.File
	stderr    *os.File
	scanner   *StatusScanner
	outCopier *StreamCopier
	errCopier *StreamCopier

	exited  chan struct{}
	exitErr error
	drained chan struct{}

	sawExit  bool
	sawDrain bool
	once     sync.Once
}

// await blocks until the child has exited and calls onExit as soon as it
// is observed. Draining the streams is left to awaitFor. It returns false
// if interrupted or ctx is done first.
func (e *execution) await(ctx context.Context, interrupt <-chan struct{}, onExit func()) bool {
	for !e.sawExit {
		select {
		case <-e.exited:
			e.sawExit = true
			onExit()
		case <-e.drainedCh():
			e.sawDrain = true
		case <-interrupt:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// awaitFor is await bounded by d instead of interruptible.
func (e *execution) awaitFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for !e.sawExit || !e.sawDrain {
		select {
		case <-e.exitedCh():
			e.sawExit = true
		case <-e.drainedCh():
			e.sawDrain = true
		case <-timer.C:
			return false
		}
	}
	return true
}

func (e *execution) exitedCh() <-chan struct{} {
	if e.sawExit {
		return nil
	}
	return e.exited
}

func (e *execution) drainedCh() <-chan struct{} {
	if e.sawDrain {
		return nil
	}
	return e.drained
}

func (e *execution) isExited() bool {
	return e.sawExit
}

// release closes the read ends of both pipes, unblocking any copier still
// reading from a stream held open by a lingering grandchild.
func (e *execution) release() {
	e.once.Do(func() {
		e.stdout.Close()
		e.stderr.Close()
	})
}
