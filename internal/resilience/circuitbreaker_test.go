package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is advanced by hand so breaker timeouts need no sleeps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clk.Now
	return cb, clk
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: -1})
	if cb.maxFailures != DefaultMaxFailures || cb.resetTimeout != DefaultResetTimeout || cb.halfOpenMax != DefaultHalfOpenMax {
		t.Errorf("defaults = (%d, %v, %d)", cb.maxFailures, cb.resetTimeout, cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{Name: "llm/openai", MaxFailures: 2, ResetTimeout: time.Minute, HalfOpenMax: 2})

	// Closed: a success between failures resets the count.
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	if got := cb.State(); got != StateClosed {
		t.Fatalf("after fail/ok/fail: %v, want closed", got)
	}

	// Second consecutive failure opens it.
	if err := cb.Execute(fail); !errors.Is(err, errTest) {
		t.Fatalf("Execute returned %v, want the call's error", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("after 2 failures: %v, want open", got)
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("open breaker ran the call")
	}

	clk.Advance(time.Minute)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("after timeout: %v, want half-open", got)
	}

	// Two successful probes close it.
	for i := range 2 {
		if err := cb.Execute(succeed); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("after probes: %v, want closed", got)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Second, HalfOpenMax: 3})

	_ = cb.Execute(fail)
	clk.Advance(10 * time.Second)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)

	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	// The open period restarts from the failed probe.
	clk.Advance(9 * time.Second)
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second, HalfOpenMax: 1})
	_ = cb.Execute(fail)
	clk.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_ContextErrorsNotCounted(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Second, HalfOpenMax: 1})

	for range 5 {
		_ = cb.Execute(func() error { return context.Canceled })
		_ = cb.Execute(func() error { return fmt.Errorf("transcribe: %w", context.DeadlineExceeded) })
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}

	// A cancelled probe gives its slot back.
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	clk.Advance(time.Second)
	_ = cb.Execute(func() error { return context.Canceled })
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("probe after cancelled probe: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	_ = cb.Execute(fail)
	cb.Reset()
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
	if err := cb.Execute(succeed); err != nil {
		t.Fatalf("Execute after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(-1):     "unknown",
		State(7):      "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", int(s), got, want)
		}
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	var (
		mu  sync.Mutex
		got []string
	)
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		Name:         "stt/whisper",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, fmt.Sprintf("%s:%s>%s", name, from, to))
		},
	})

	_ = cb.Execute(fail)
	clk.Advance(time.Second)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	cb.Reset()

	mu.Lock()
	defer mu.Unlock()
	want := strings.Join([]string{
		"stt/whisper:closed>open",
		"stt/whisper:open>half-open",
		"stt/whisper:half-open>closed",
		"stt/whisper:closed>open",
		"stt/whisper:open>closed",
	}, " ")
	if s := strings.Join(got, " "); s != want {
		t.Errorf("transitions:\n got %s\nwant %s", s, want)
	}
}
