package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single probe request to test recovery.
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

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for logging.
	Name string
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before allowing a probe.
	ResetTimeout time.Duration
	// OnStateChange is called when state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns the engine defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive failures for one stage and fails fast
// while the stage is considered unhealthy.
//
// While open, Allow reports false until ResetTimeout has elapsed since the
// circuit opened; then exactly one probe call is let through. A successful
// probe closes the circuit and resets the failure count to zero; a failed
// probe reopens it for another ResetTimeout.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	openUntil   time.Time
	lastAttempt time.Time
	probing     bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Allow reports whether a call may proceed. It must be paired with a
// RecordSuccess or RecordFailure when it returns true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.lastAttempt = now

	switch cb.currentState(now) {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
	cb.probing = false
	cb.toState(StateClosed)
}

// RecordFailure increments the failure count; crossing the threshold
// (or failing the half-open probe) opens the circuit.
// Returns true if the circuit is now open.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.failures++

	switch cb.currentState(now) {
	case StateHalfOpen:
		cb.probing = false
		cb.open(now)
		return true
	default:
		if cb.failures >= cb.config.FailureThreshold {
			cb.open(now)
			return true
		}
	}
	return false
}

// Release abandons a permitted call without recording a verdict, for
// callers that short-circuit after Allow (e.g. on a cache hit). It
// frees the half-open probe slot and leaves the failure count alone.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// Execute runs fn through the breaker, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastAttempt returns the time of the most recent Allow call.
func (cb *CircuitBreaker) LastAttempt() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastAttempt
}

// Reset forces the breaker back to closed with zero failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
	cb.probing = false
	cb.toState(StateClosed)
}

// currentState resolves the state for the given instant, handling the
// open → half-open transition. Caller must hold cb.mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && !now.Before(cb.openUntil) {
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) open(now time.Time) {
	cb.openUntil = now.Add(cb.config.ResetTimeout)
	cb.toState(StateOpen)
}

func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
