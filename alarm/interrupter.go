package alarm

import "sync/atomic"

// Target is whatever an Alarm nags when it fires. Interrupt must not block
// and must not call Cancel on the alarm that is interrupting it.
type Target interface {
	Interrupt()
}

// InterruptFunc adapts a plain function, such as a context.CancelFunc, to Target.
type InterruptFunc func()

// Interrupt calls f.
func (f InterruptFunc) Interrupt() { f() }

// Interrupter is a Target a waiting goroutine can select on. Interrupts are
// counted and never block; pending signals coalesce into one.
type Interrupter struct {
	ch    chan struct{}
	count atomic.Int64
}

// NewInterrupter returns a ready Interrupter.
func NewInterrupter() *Interrupter {
	return &Interrupter{ch: make(chan struct{}, 1)}
}

// Interrupt records an interrupt and wakes one waiter.
func (i *Interrupter) Interrupt() {
	i.count.Add(1)
	select {
	case i.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives a value after Interrupt.
func (i *Interrupter) C() <-chan struct{} {
	return i.ch
}

// Count returns how many times Interrupt was called.
func (i *Interrupter) Count() int64 {
	return i.count.Load()
}

// Interrupted reports whether Interrupt was called at least once.
func (i *Interrupter) Interrupted() bool {
	return i.Count() > 0
}
