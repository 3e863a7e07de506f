// Package dependency implements resilience wrappers for calls to
// external dependencies (AI providers, the knowledge graph's storage
// backend): a hand-rolled sliding-failure-rate circuit breaker,
// grounded on jordigilh-kubernaut/pkg/orchestration/dependency's
// circuit_breaker_test.go contract (no implementation file shipped
// with that repo in this pack — built to satisfy its test's documented
// behavior).
package dependency

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is where a CircuitBreaker sits in its state machine.
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// minRequestsForEvaluation is the smallest sample size the breaker
// will compute a failure rate over before it can trip (avoids
// tripping on a single unlucky call).
const minRequestsForEvaluation = 5

// CircuitBreaker counts requests and failures since it last closed
// and trips to Open once, over at least minRequestsForEvaluation
// calls, failures/requests reaches failureThreshold. An Open breaker
// rejects calls without invoking them until resetTimeout has elapsed,
// at which point its next call is let through as a HalfOpen probe:
// success closes the breaker (and clears its counters), failure
// reopens it.
type CircuitBreaker struct {
	name             string
	failureThreshold float64
	resetTimeout     time.Duration

	mu       sync.Mutex
	state    CircuitState
	requests int64
	failures int64
	openedAt time.Time
}

// NewCircuitBreaker builds a CircuitBreaker starting Closed.
func NewCircuitBreaker(name string, failureThreshold float64, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitStateClosed,
	}
}

// Call runs fn if the breaker is Closed or ready to probe in
// HalfOpen, or rejects it immediately with an error if the breaker is
// Open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.transitionIfExpiredLocked() == CircuitStateOpen {
		cb.mu.Unlock()
		return fmt.Errorf("circuit breaker %q: circuit breaker is open", cb.name)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.requests++
	if err != nil {
		cb.failures++
	}

	if cb.state == CircuitStateHalfOpen {
		if err != nil {
			cb.tripLocked()
		} else {
			cb.resetLocked()
		}
		return err
	}

	if cb.requests >= minRequestsForEvaluation && cb.failureRateLocked() >= cb.failureThreshold {
		cb.tripLocked()
	}
	return err
}

func (cb *CircuitBreaker) transitionIfExpiredLocked() CircuitState {
	if cb.state == CircuitStateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = CircuitStateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = CircuitStateOpen
	cb.openedAt = time.Now()
}

func (cb *CircuitBreaker) resetLocked() {
	cb.state = CircuitStateClosed
	cb.requests = 0
	cb.failures = 0
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if cb.requests == 0 {
		return 0
	}
	return float64(cb.failures) / float64(cb.requests)
}

// GetState reports the breaker's current state, resolving an elapsed
// Open→HalfOpen transition first.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.transitionIfExpiredLocked()
}

// GetName returns the breaker's identifying name.
func (cb *CircuitBreaker) GetName() string { return cb.name }

// GetFailureThreshold returns the configured trip threshold.
func (cb *CircuitBreaker) GetFailureThreshold() float64 { return cb.failureThreshold }

// GetResetTimeout returns the configured Open→HalfOpen timeout.
func (cb *CircuitBreaker) GetResetTimeout() time.Duration { return cb.resetTimeout }

// GetFailures returns the failure count since the breaker last closed.
func (cb *CircuitBreaker) GetFailures() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// GetFailureRate returns failures/requests since the breaker last
// closed, or 0 with no requests yet.
func (cb *CircuitBreaker) GetFailureRate() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureRateLocked()
}
