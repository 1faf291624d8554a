// Package resilience guards handle creation against a failing backend.
//
// A circuit breaker counts consecutive factory failures. Once the threshold
// is reached it opens and rejects creation attempts immediately, so a pool
// waiting on a dead database does not keep dialing it. After a cooldown
// a limited number of trial attempts are let through:
//
//	closed --(failures)--> open --(timeout)--> half-open --(successes)--> closed
//	                        ^                      |
//	                        +----(trial fails)-----+
package resilience

import (
	"context"
	"sync"
	"time"
)

// CircuitState is the position of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets every call through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects every call.
	CircuitOpen
	// CircuitHalfOpen lets a few trial calls through.
	CircuitHalfOpen
)

var stateNames = [...]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a circuit breaker. Non-positive fields take the
// value from DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of trial successes that closes it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before allowing trials.
	Timeout time.Duration
	// MaxHalfOpenRequests caps concurrent trial calls.
	MaxHalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns defaults suited to database dials.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             10 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxHalfOpenRequests <= 0 {
		c.MaxHalfOpenRequests = def.MaxHalfOpenRequests
	}
	return c
}

// CircuitBreaker tracks the health of one backend.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int // consecutive, while closed
	successes   int // trial successes, while half-open
	trials      int // trial slots handed out, while half-open
	openedAt    time.Time
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: cfg.withDefaults(),
		now:    time.Now,
	}
}

// Name returns the name of this circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// cooledDown reports whether an open circuit may move to half-open.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) cooledDown() bool {
	return cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout
}

// State returns the current state. An open circuit whose timeout has
// elapsed reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Allow reports whether a call may proceed. While half-open each allowed
// call takes one of the MaxHalfOpenRequests trial slots.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.cooledDown() {
		cb.setState(CircuitHalfOpen)
	}

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.trials >= cb.config.MaxHalfOpenRequests {
			return false
		}
		cb.trials++
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(CircuitClosed)
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
	}
}

// setState moves to next and resets the per-state counters.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) setState(next CircuitState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.failures, cb.successes, cb.trials = 0, 0, 0

	if next == CircuitOpen {
		cb.openedAt = cb.now()
		CircuitBreakerTrips.Inc()
	}

	log.WithField("circuit", cb.name).
		WithField("from", prev.String()).
		WithField("to", next.String()).
		Info("circuit breaker state transition")
}

// ExecuteWithContext runs fn if the circuit allows it and records the
// outcome. A rejected call returns ErrCircuitOpen. Failures caused by ctx
// ending are not held against the backend.
func (cb *CircuitBreaker) ExecuteWithContext(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		CircuitBreakerRejections.Inc()
		return ErrCircuitOpen
	}
	if err := ctx.Err(); err != nil {
		cb.releaseTrial()
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess()
	case ctx.Err() != nil:
		cb.releaseTrial()
	default:
		cb.RecordFailure()
	}
	return err
}

// releaseTrial returns a trial slot taken by a call that never reached the
// backend.
func (cb *CircuitBreaker) releaseTrial() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen && cb.trials > 0 {
		cb.trials--
	}
}

// Reset closes the circuit and clears its counters. The last failure time
// is kept for diagnostics.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures, cb.successes, cb.trials = 0, 0, 0
	cb.openedAt = time.Time{}
}

// CircuitBreakerStats is a snapshot of a circuit breaker.
type CircuitBreakerStats struct {
	Name            string
	State           CircuitState
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
}

// Stats returns a snapshot of the circuit breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.state
	if cb.cooledDown() {
		state = CircuitHalfOpen
	}
	return CircuitBreakerStats{
		Name:            cb.name,
		State:           state,
		FailureCount:    cb.failures,
		SuccessCount:    cb.successes,
		LastFailureTime: cb.lastFailure,
	}
}
