package alarm

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kbukum/actionexec/logger"
)

const (
	// RepeatInterval is the pause between interrupts once an alarm has fired.
	RepeatInterval = 100 * time.Millisecond
	// EscalateEvery is how many repeats pass between "not responding" warnings.
	EscalateEvery = 100
	// ErrorStreamEvery is how many repeats pass between warnings that are also
	// written to the error stream.
	ErrorStreamEvery = 1000
)

// Alarm interrupts a target after a delay and keeps interrupting it every
// RepeatInterval until cancelled, so a target that misses one interrupt is
// nagged again instead of hanging.
type Alarm struct {
	sched    *Scheduler
	target   Target
	delay    time.Duration
	interval time.Duration
	name     string
	log      *logger.Logger
	errOut   io.Writer
	onEscal  func(repeats int)

	mu        sync.Mutex
	entry     *Entry
	cancelled bool
	count     int
	firstFire time.Time
}

// Option configures an Alarm.
type Option func(*Alarm)

// WithName describes the watched operation in log messages.
func WithName(name string) Option {
	return func(a *Alarm) { a.name = name }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Alarm) { a.log = l }
}

// WithErrorWriter sets the stream that receives every ErrorStreamEvery-th
// warning. Defaults to os.Stderr.
func WithErrorWriter(w io.Writer) Option {
	return func(a *Alarm) { a.errOut = w }
}

// WithRepeatInterval overrides RepeatInterval.
func WithRepeatInterval(d time.Duration) Option {
	return func(a *Alarm) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithEscalationHook is called with the repeat count on every
// "not responding" warning.
func WithEscalationHook(fn func(repeats int)) Option {
	return func(a *Alarm) { a.onEscal = fn }
}

// Start arms an alarm on sched that interrupts target after delay.
func Start(sched *Scheduler, delay time.Duration, target Target, opts ...Option) (*Alarm, error) {
	a := &Alarm{
		sched:    sched,
		target:   target,
		delay:    delay,
		interval: RepeatInterval,
		name:     "operation",
		errOut:   os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get(logger.ComponentAlarm)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := sched.Schedule(delay, a.fire)
	if err != nil {
		return nil, err
	}
	a.entry = e
	return a, nil
}

// Cancel stops the alarm. Once Cancel returns the target is not interrupted
// again. Idempotent and safe from any goroutine except from inside the
// target's Interrupt.
func (a *Alarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}
	a.cancelled = true
	if a.entry != nil {
		a.entry.Cancel()
		a.entry = nil
	}
}

// Fired reports whether the alarm has interrupted its target at least once.
func (a *Alarm) Fired() bool {
	return a.Count() > 0
}

// Count returns how many times the target has been interrupted.
func (a *Alarm) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *Alarm) fire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelled {
		return
	}

	a.count++
	a.target.Interrupt()

	if a.count == 1 {
		a.firstFire = time.Now()
		a.log.Warn(fmt.Sprintf("%s timed out after %s", a.name, a.delay),
			logger.Fields(logger.FieldTimeout, a.delay.String()))
	} else if repeats := a.count - 1; repeats%EscalateEvery == 0 {
		a.escalate(repeats)
	}

	e, err := a.sched.Schedule(a.interval, a.fire)
	if err != nil {
		a.log.Debug("alarm stopped rescheduling", logger.ErrorFields("reschedule", err))
		a.entry = nil
		return
	}
	a.entry = e
}

// escalate reports a target that keeps ignoring interrupts. Must hold mu.
func (a *Alarm) escalate(repeats int) {
	since := time.Since(a.firstFire).Round(time.Second)
	msg := fmt.Sprintf("%s not responding: interrupted %d times over %s since timing out after %s",
		a.name, repeats, since, a.delay)

	a.log.Warn(msg, logger.Fields("repeats", repeats))
	if repeats%ErrorStreamEvery == 0 && a.errOut != nil {
		fmt.Fprintln(a.errOut, msg)
	}
	if a.onEscal != nil {
		a.onEscal(repeats)
	}
}
