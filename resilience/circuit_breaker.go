package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows calls through.
	StateClosed State = iota
	// StateOpen rejects all calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Execute when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// HalfOpenMaxCalls is the number of probe calls allowed while half-open.
	HalfOpenMaxCalls int
	// OnStateChange is called when state changes, with the lock released.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxFailures:      3,
		Timeout:          5 * time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker fails fast once a collaborator has failed repeatedly.
// Callers either use Execute, or pair Allow with Record when the outcome is
// only known later.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	probeOK  int
	openedAt time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn if the breaker allows it and records the result.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.Record(err)
	return err
}

// Allow reports whether a call may proceed. A true result while half-open
// consumes one probe slot; the caller must follow up with Record.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	var change func()
	allowed := false
	switch cb.advance(&change) {
	case StateClosed:
		allowed = true
	case StateHalfOpen:
		if cb.probes < cb.config.HalfOpenMaxCalls {
			cb.probes++
			allowed = true
		}
	}
	cb.mu.Unlock()
	if change != nil {
		change()
	}
	return allowed
}

// Record records the outcome of an allowed call.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	var change func()
	state := cb.advance(&change)
	if err != nil {
		cb.failures++
		if state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen, &change)
		}
	} else {
		switch state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.probeOK++
			if cb.probeOK >= cb.config.HalfOpenMaxCalls {
				cb.transition(StateClosed, &change)
			}
		}
	}
	cb.mu.Unlock()
	if change != nil {
		change()
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	var change func()
	s := cb.advance(&change)
	cb.mu.Unlock()
	if change != nil {
		change()
	}
	return s
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var change func()
	cb.transition(StateClosed, &change)
	cb.failures = 0
	cb.mu.Unlock()
	if change != nil {
		change()
	}
}

// advance moves an expired open circuit to half-open. Must hold mu.
func (cb *CircuitBreaker) advance(change *func()) State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.transition(StateHalfOpen, change)
	}
	return cb.state
}

// transition switches state and queues the callback. Must hold mu.
func (cb *CircuitBreaker) transition(to State, change *func()) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.probes = 0
	cb.probeOK = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.failures = 0
	}
	if fn := cb.config.OnStateChange; fn != nil {
		name := cb.config.Name
		*change = func() { fn(name, from, to) }
	}
}
