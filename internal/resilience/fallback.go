package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result. The error also wraps each entry's own failure.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is the breaker template applied to every entry of a
// [FallbackGroup]. Name is replaced by the entry name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// EntryStatus is the breaker state of one backend, as shown by /readyz.
type EntryStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type entry[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// FallbackGroup is an ordered list of interchangeable backends. Calls go to
// the first entry whose breaker admits them and move down the list on
// failure.
//
// Register every entry before sharing the group; it is read-only afterwards.
type FallbackGroup[T any] struct {
	cfg     FallbackConfig
	entries []entry[T]
}

// NewFallbackGroup returns a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, name string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(name, primary)
	return g
}

// AddFallback appends backend after the existing entries.
func (g *FallbackGroup[T]) AddFallback(name string, backend T) {
	cb := g.cfg.CircuitBreaker
	cb.Name = name
	g.entries = append(g.entries, entry[T]{name: name, backend: backend, breaker: NewCircuitBreaker(cb)})
}

// Len returns the number of entries.
func (g *FallbackGroup[T]) Len() int { return len(g.entries) }

// Status lists every entry in call order.
func (g *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, len(g.entries))
	for i, e := range g.entries {
		out[i] = EntryStatus{Name: e.name, State: e.breaker.State().String()}
	}
	return out
}

// Execute is [Call] for functions without a result.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, _, err := Call(g, func(v T) (struct{}, error) { return struct{}{}, fn(v) })
	return err
}

// Call runs fn against the entries in order and returns the first success
// together with the name of the entry that served it.
//
// Entries with an open breaker are skipped. A context error stops the walk
// and is returned unwrapped: the next backend would get the same dead
// context. When every entry fails the error wraps [ErrAllFailed] and each
// entry's failure.
func Call[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, string, error) {
	var (
		zero R
		errs []error
	)
	for i := range g.entries {
		e := &g.entries[i]
		var res R
		err := e.breaker.Execute(func() error {
			var err error
			res, err = fn(e.backend)
			return err
		})
		switch {
		case err == nil:
			if i > 0 {
				slog.Info("served by fallback provider", "provider", e.name, "position", i)
			}
			return res, e.name, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return zero, e.name, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", e.name)
		default:
			slog.Warn("provider failed", "provider", e.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
