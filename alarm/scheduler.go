package alarm

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/actionexec/component"
	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
)

const (
	entryPending int32 = iota
	entryFired
	entryCancelled
)

// Entry is one scheduled callback.
type Entry struct {
	sched *Scheduler
	fn    func()
	when  time.Time
	seq   uint64
	index int // position in the heap, -1 once removed
	state atomic.Int32
}

// Cancel prevents the callback from running. It returns true if this call
// cancelled a pending entry and false if the entry already fired or was
// cancelled before. Safe to call any number of times from any goroutine.
func (e *Entry) Cancel() bool {
	if !e.state.CompareAndSwap(entryPending, entryCancelled) {
		return false
	}
	s := e.sched
	s.mu.Lock()
	if e.index >= 0 {
		heap.Remove(&s.queue, e.index)
	}
	s.mu.Unlock()
	s.poke()
	return true
}

// Fired reports whether the callback has been started.
func (e *Entry) Fired() bool { return e.state.Load() == entryFired }

// Cancelled reports whether the entry was cancelled before firing.
func (e *Entry) Cancelled() bool { return e.state.Load() == entryCancelled }

// Scheduler runs delayed callbacks for every alarm and timeout in the
// process. It is started by the first Schedule call and stopped by Shutdown.
// Each callback runs on its own goroutine so a slow one cannot hold up the
// others.
type Scheduler struct {
	name string
	log  *logger.Logger

	mu       sync.Mutex
	queue    entryQueue
	seq      uint64
	started  bool
	stopped  bool
	wake     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}

	inflight sync.WaitGroup
	running  atomic.Int64
	fired    atomic.Int64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerName sets the name used in logs and as the component name.
func WithSchedulerName(name string) SchedulerOption {
	return func(s *Scheduler) { s.name = name }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *logger.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler creates an idle scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		name:     "alarm-scheduler",
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get(logger.ComponentAlarm)
	}
	return s
}

// Schedule runs fn once after delay. A non-positive delay fires as soon as
// possible. It fails only after Shutdown.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (*Entry, error) {
	if fn == nil {
		return nil, errors.InvalidInput("fn", "callback must not be nil")
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errors.SchedulerStopped(s.name)
	}
	if !s.started {
		s.started = true
		go s.loop()
		s.log.Debug("scheduler started", logger.Fields("scheduler", s.name))
	}
	s.seq++
	e := &Entry{sched: s, fn: fn, when: time.Now().Add(delay), seq: s.seq}
	heap.Push(&s.queue, e)
	head := s.queue[0] == e
	s.mu.Unlock()

	if head {
		s.poke()
	}
	return e, nil
}

// Pending returns the number of entries waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Running returns the number of callbacks currently executing.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

// Shutdown stops accepting work, cancels pending entries and waits for
// running callbacks until ctx is done. Calling it again is a no-op.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	pending := len(s.queue)
	for _, e := range s.queue {
		e.state.CompareAndSwap(entryPending, entryCancelled)
		e.index = -1
	}
	s.queue = nil
	started := s.started
	s.mu.Unlock()

	close(s.stop)
	if started {
		<-s.loopDone
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Debug("scheduler stopped", logger.Fields("scheduler", s.name, "cancelled", pending))
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stopped with callbacks still running",
			logger.Fields("scheduler", s.name, "running", s.Running()))
		return fmt.Errorf("scheduler %s shutdown: %w", s.name, ctx.Err())
	}
}

// poke wakes the loop so it re-reads the head of the queue.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		now := time.Now()
		for len(s.queue) > 0 && !s.queue[0].when.After(now) {
			e := heap.Pop(&s.queue).(*Entry)
			if e.state.CompareAndSwap(entryPending, entryFired) {
				s.dispatch(e)
			}
		}
		var next <-chan time.Time
		if len(s.queue) > 0 {
			timer.Reset(s.queue[0].when.Sub(now))
			next = timer.C
		}
		s.mu.Unlock()

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-next:
		}
		timer.Stop()
	}
}

// dispatch starts e's callback. Must hold mu.
func (s *Scheduler) dispatch(e *Entry) {
	s.inflight.Add(1)
	s.running.Add(1)
	s.fired.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.running.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled callback panicked", logger.Fields("scheduler", s.name, "panic", fmt.Sprint(r)))
			}
		}()
		e.fn()
	}()
}

// --- component.Component ---

// Name returns the component name.
func (s *Scheduler) Name() string { return s.name }

// Start is a no-op; the scheduler starts itself on first use.
func (s *Scheduler) Start(ctx context.Context) error { return nil }

// Stop shuts the scheduler down.
func (s *Scheduler) Stop(ctx context.Context) error { return s.Shutdown(ctx) }

// Health reports unhealthy once the scheduler has been shut down.
func (s *Scheduler) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	stopped := s.stopped
	pending := len(s.queue)
	s.mu.Unlock()

	h := component.Health{Name: s.name, Status: component.StatusHealthy}
	if stopped {
		h.Status = component.StatusUnhealthy
		h.Message = "shut down"
		return h
	}
	h.Message = fmt.Sprintf("%d pending, %d running, %d fired", pending, s.Running(), s.fired.Load())
	return h
}

// entryQueue is a min-heap ordered by fire time, then scheduling order.
type entryQueue []*Entry

func (q entryQueue) Len() int { return len(q) }

func (q entryQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x any) {
	e := x.(*Entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
