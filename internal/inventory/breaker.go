package inventory

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker state. The numeric values double as
// the gauge values exported for monitoring.
type BreakerState int

const (
	// StateClosed admits all requests.
	StateClosed BreakerState = iota
	// StateHalfOpen admits probe requests after the cooldown.
	StateHalfOpen
	// StateOpen rejects all requests until the cooldown elapses.
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateHalfOpen:
		return "HalfOpen"
	case StateOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

// BreakerConfig controls when the breaker trips and recovers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes
	// that closes it again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before admitting probes.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the standard thresholds: open after 5
// failures, close after 2 probe successes, 60s cooldown.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         60 * time.Second,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	return c
}

// BreakerCounts is a point-in-time snapshot of the breaker's counters.
type BreakerCounts struct {
	State               BreakerState
	ConsecutiveFailures int
	HalfOpenSuccesses   int
}

// CircuitBreaker sheds load from a failing upstream. After
// FailureThreshold consecutive failures it opens and rejects requests
// outright; once the cooldown elapses it admits probes, and
// SuccessThreshold consecutive probe successes close it again. Any probe
// failure reopens it immediately.
type CircuitBreaker struct {
	cfg BreakerConfig

	// OnStateChange, if set, is called outside the breaker's lock after
	// every transition.
	OnStateChange func(from, to BreakerState)

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	halfOpenSuccesses   int
	openedAt            time.Time
}

// NewCircuitBreaker builds a breaker in the closed state. Zero config
// fields fall back to defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.normalized(), state: StateClosed}
}

// Allow reports whether a request may proceed. An open breaker whose
// cooldown has elapsed moves to half-open and admits the request as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		cb.mu.Unlock()
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.Cooldown {
			notify := cb.transition(StateHalfOpen)
			cb.halfOpenSuccesses = 0
			cb.mu.Unlock()
			notify()
			return true
		}
		cb.mu.Unlock()
		return false
	}
	cb.mu.Unlock()
	return false
}

// RecordSuccess reports a successful request to the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	notify := func() {}
	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
			notify = cb.transition(StateClosed)
			cb.consecutiveFailures = 0
			cb.halfOpenSuccesses = 0
		}
	case StateOpen:
		// A success while open can only come from a request admitted
		// before the trip. It does not affect the cooldown.
	}
	cb.mu.Unlock()
	notify()
}

// RecordFailure reports a failed request to the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	notify := func() {}
	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			notify = cb.trip()
		}
	case StateHalfOpen:
		// Any probe failure reopens immediately.
		notify = cb.trip()
	case StateOpen:
		cb.consecutiveFailures++
	}
	cb.mu.Unlock()
	notify()
}

// trip moves the breaker to open and stamps the cooldown start. Callers
// must hold cb.mu; the returned func fires OnStateChange and must be
// invoked after unlocking.
func (cb *CircuitBreaker) trip() func() {
	notify := cb.transition(StateOpen)
	cb.openedAt = time.Now()
	cb.halfOpenSuccesses = 0
	return notify
}

// transition records a state change and returns the deferred notification.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) transition(to BreakerState) func() {
	from := cb.state
	cb.state = to
	hook := cb.OnStateChange
	if hook == nil || from == to {
		return func() {}
	}
	return func() { hook(from, to) }
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Counts() BreakerCounts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerCounts{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		HalfOpenSuccesses:   cb.halfOpenSuccesses,
	}
}
