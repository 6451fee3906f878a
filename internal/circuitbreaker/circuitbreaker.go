// Package circuitbreaker implements a per-domain circuit breaker for the
// fetch layer. After a threshold of consecutive failures the breaker opens
// and fails fast; after a cooldown it half-opens and lets one probe through.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// OpenError is returned when the breaker rejects a call without running it.
type OpenError struct {
	Until time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open until %s", e.Until.Format(time.RFC3339))
}

// IsOpenError reports whether an error came from an open breaker rather
// than from the protected call itself.
func IsOpenError(err error) bool {
	_, ok := err.(*OpenError)
	return ok
}

// CircuitBreaker tracks consecutive failures for one domain.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	threshold int
	timeout   time.Duration
	openedAt  time.Time
}

func New(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
	}
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.timeout {
			until := cb.openedAt.Add(cb.timeout)
			cb.mu.Unlock()
			return &OpenError{Until: until}
		}
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return err
	}
	cb.failures = 0
	cb.state = StateClosed
	return nil
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a snapshot of the breaker for diagnostics.
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"state":     cb.state.String(),
		"failures":  cb.failures,
		"threshold": cb.threshold,
	}
}
