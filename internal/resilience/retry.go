package resilience

import (
	"context"
	"log/slog"
	"time"
)

// Retry calls fn up to attempts times, sleeping backoff between consecutive
// calls. It stops early on success or once ctx is done, in which case the
// last error from fn is returned. The second return value is the number of
// times fn was actually called.
//
// A non-positive attempts is treated as one.
func Retry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (T, error)) (T, int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		val T
		err error
	)
	for n := 1; ; n++ {
		val, err = fn(ctx)
		if err == nil || n >= attempts || ctx.Err() != nil {
			return val, n, err
		}
		slog.Debug("call failed, retrying", "attempt", n, "backoff", backoff, "error", err)
		if !sleep(ctx, backoff) {
			return val, n, err
		}
	}
}

// sleep waits for d or until ctx is done. Reports whether the full duration
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
