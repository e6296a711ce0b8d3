package util

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Policy describes a bounded exponential backoff. The delay after the n-th
// failed attempt is BaseDelay*2^(n-1), capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs operation until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned.
func Do(ctx context.Context, p Policy, operation func() error) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, p Policy, operation func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var result T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
		if attempt == attempts {
			break
		}
		delay := p.Delay(attempt)
		slog.Debug("retry_backoff", "attempt", attempt, "delay", delay, "err", err)
		if serr := sleep(ctx, delay); serr != nil {
			return result, serr
		}
	}
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLockError reports whether err is SQLite's busy/locked condition.
func IsLockError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

var lockPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    400 * time.Millisecond,
	Retryable:   IsLockError,
}

// RetryOnLock retries the given function if it fails with a database lock error
func RetryOnLock(operation func() error) error {
	return Do(context.Background(), lockPolicy, operation)
}
