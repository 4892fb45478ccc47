package process

import (
	"sync/atomic"
	"time"

	"github.com/kbukum/actionexec/alarm"
	"github.com/kbukum/actionexec/timeout"
)

const (
	taskArmed int32 = iota
	taskFired
	taskCancelled
)

// timeoutTask is the one-shot timer attached to a single execution. It
// resolves exactly once: either it fires (runs the diagnostic hook, then
// interrupts the waiting caller) or it is cancelled.
type timeoutTask struct {
	state  atomic.Int32
	result atomic.Int32
	entry  *alarm.Entry
	onFire func() timeout.Outcome
	target alarm.Target
	done   chan struct{}
}

func armTimeout(sched *alarm.Scheduler, d time.Duration, onFire func() timeout.Outcome, target alarm.Target) (*timeoutTask, error) {
	t := &timeoutTask{onFire: onFire, target: target, done: make(chan struct{})}
	e, err := sched.Schedule(d, t.fire)
	if err != nil {
		return nil, err
	}
	t.entry = e
	return t, nil
}

func (t *timeoutTask) fire() {
	if !t.state.CompareAndSwap(taskArmed, taskFired) {
		return
	}
	defer close(t.done)
	defer t.target.Interrupt()
	if t.onFire != nil {
		t.result.Store(int32(t.onFire()))
	}
}

// cancel disarms the task. It reports whether this call did so; cancelling
// a fired or already cancelled task has no effect.
func (t *timeoutTask) cancel() bool {
	if t == nil || !t.state.CompareAndSwap(taskArmed, taskCancelled) {
		return false
	}
	t.entry.Cancel()
	return true
}

// fired reports whether the timeout went off.
func (t *timeoutTask) fired() bool {
	return t != nil && t.state.Load() == taskFired
}

// wait blocks until a fired task has finished its hook and interrupted its
// target. It returns at once for a task that never fired. The hook is a
// Guard invocation, which is bounded by its own watchdog.
func (t *timeoutTask) wait() {
	if !t.fired() {
		return
	}
	<-t.done
}

func (t *timeoutTask) outcome() timeout.Outcome {
	if t == nil {
		return timeout.OutcomeNone
	}
	return timeout.Outcome(t.result.Load())
}
