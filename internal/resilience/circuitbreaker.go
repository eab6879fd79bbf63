// Package resilience provides the retry, circuit breaker and provider
// failover primitives wrapped around the speech-to-text and language-model
// backends.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open).
// [FallbackGroup] composes several backends of one kind with a breaker each, so
// a failing primary is bypassed in favour of the next healthy one. [Retry]
// re-runs a call a fixed number of times with a fixed pause in between.
//
// Errors caused by the caller's own context (cancellation or deadline) are
// never counted against a backend and never trigger failover: the stage
// deadline belongs to the pipeline, not to the provider.
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

// State is the mode a [CircuitBreaker] is in.
type State int

const (
	// StateClosed forwards every call and counts consecutive failures.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until ResetTimeout
	// has passed since it opened.
	StateOpen

	// StateHalfOpen lets HalfOpenMax probe calls through. One failed probe
	// reopens the breaker; HalfOpenMax successful probes close it.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker defaults, applied to zero or negative config values.
const (
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
	DefaultHalfOpenMax  = 3
)

// CircuitBreakerConfig tunes a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics (e.g., "stt/deepgram").
	Name string

	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probe calls admitted while half-open, and
	// the number of successes needed to close again.
	HalfOpenMax int

	// OnStateChange, if set, runs after each transition outside the lock.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards one provider backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	onChange     func(name string, from, to State)
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int       // consecutive, closed state only
	openedAt time.Time // last transition to open
	probes   int       // admitted while half-open, including in-flight
	passed   int       // successful probes
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		onChange:     cfg.OnStateChange,
		now:          time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = DefaultMaxFailures
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = DefaultResetTimeout
	}
	if cb.halfOpenMax <= 0 {
		cb.halfOpenMax = DefaultHalfOpenMax
	}
	return cb
}

// Name returns the breaker's label.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker rejects the call. Errors that wrap
// [context.Canceled] or [context.DeadlineExceeded] are returned as is and
// leave the breaker untouched.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, from, err := cb.admit()
	if err != nil {
		return err
	}
	cb.notify(from, StateHalfOpen)

	err = fn()

	cb.mu.Lock()
	before := cb.state
	cb.settle(probe, err)
	after := cb.state
	cb.mu.Unlock()

	cb.notify(before, after)
	return err
}

// admit decides whether a call may proceed. from is the state before an
// open to half-open transition made by this call, or StateHalfOpen if none.
func (cb *CircuitBreaker) admit() (probe bool, from State, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	from = StateHalfOpen
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false, from, ErrCircuitOpen
		}
		from = StateOpen
		cb.state = StateHalfOpen
		cb.probes, cb.passed = 0, 0
		slog.Info("circuit breaker probing", "breaker", cb.name)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			return false, from, ErrCircuitOpen
		}
		cb.probes++
		return true, from, nil
	}
	return false, from, nil
}

// settle records the outcome of an admitted call. cb.mu must be held.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if probe && cb.state == StateHalfOpen {
			cb.probes--
		}

	case err != nil:
		if probe {
			if cb.state == StateHalfOpen {
				cb.trip("probe failed")
			}
			return
		}
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			cb.trip("consecutive failures")
		}

	case probe:
		if cb.state != StateHalfOpen {
			return
		}
		cb.passed++
		if cb.passed >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("circuit breaker closed", "breaker", cb.name)
		}

	default:
		cb.failures = 0
	}
}

// trip opens the breaker. cb.mu must be held.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	slog.Warn("circuit breaker opened", "breaker", cb.name, "reason", reason, "failures", cb.failures)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// State returns the current state. An open breaker whose timeout has passed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	before := cb.state
	cb.state = StateClosed
	cb.failures, cb.probes, cb.passed = 0, 0, 0
	cb.mu.Unlock()

	slog.Info("circuit breaker reset", "breaker", cb.name)
	cb.notify(before, StateClosed)
}
