// Package resilience provides the failure-handling primitives used around
// remote calls: a circuit breaker, ordered failover across interchangeable
// backends, and bounded retry with exponential backoff.
//
// [CircuitBreaker] guards the feedback analyzer and every LLM backend behind
// it. [FallbackGroup] and [LLMFallback] fail over between configured LLM
// backends. [Retry] drives the live-session dial.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successful probes close the breaker; any failure opens it again.
	StateHalfOpen
)

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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select defaults.
type CircuitBreakerConfig struct {
	// Name labels logs and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the probe budget in the half-open state and the
	// number of successful probes needed to close. Default: 3.
	HalfOpenMax int

	// IsFailure decides whether an error counts against the breaker. The
	// default counts everything except context.Canceled, which means the
	// caller gave up rather than the backend failing.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, with the breaker lock
	// held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Now overrides time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// CircuitBreaker is a three-state (closed, open, half-open) breaker.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // last failure that (re)opened the breaker
	probes   int       // probes admitted in the current half-open window
	passed   int       // successful probes in the current half-open window
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute runs fn if the breaker admits the call and records its outcome.
// A rejected call returns [ErrCircuitOpen] without running fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and whether it is a half-open
// probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.passed = 0, 0
		cb.moveTo(StateHalfOpen)
		cb.cfg.Logger.Info("circuit breaker probing", "name", cb.cfg.Name)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && cb.cfg.IsFailure(err)
	switch {
	case probe && failed:
		cb.openedAt = cb.cfg.Now()
		cb.moveTo(StateOpen)
		cb.cfg.Logger.Warn("circuit breaker re-opened by failed probe", "name", cb.cfg.Name, "err", err)

	case probe && err == nil:
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMax && cb.state == StateHalfOpen {
			cb.failures = 0
			cb.moveTo(StateClosed)
			cb.cfg.Logger.Info("circuit breaker closed", "name", cb.cfg.Name)
		}

	case failed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures && cb.state == StateClosed {
			cb.openedAt = cb.cfg.Now()
			cb.moveTo(StateOpen)
			cb.cfg.Logger.Warn("circuit breaker opened",
				"name", cb.cfg.Name,
				"consecutive_failures", cb.failures,
				"err", err,
			)
		}

	case err == nil:
		cb.failures = 0
	}
}

// State returns the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures, cb.probes, cb.passed = 0, 0, 0
	cb.moveTo(StateClosed)
}

// moveTo changes state and fires OnStateChange. cb.mu must be held.
func (cb *CircuitBreaker) moveTo(next State) {
	prev := cb.state
	cb.state = next
	if prev != next && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, prev, next)
	}
}
