package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RateLimitError marks an upstream 429. RetryAfter carries the provider's
// hint when one was sent; zero means back off on the local schedule.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Policy bounds a retried operation. The zero value means a single attempt
// with a one second base delay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Timer substitutes the wait clock; tests inject an immediate one.
	Timer backoff.Timer
}

// linear waits base×attempt between tries, preferring a provider hint
// when the last failure carried one.
type linear struct {
	base    time.Duration
	attempt int
	hint    time.Duration
}

func (l *linear) NextBackOff() time.Duration {
	l.attempt++
	if l.hint > 0 {
		d := l.hint
		l.hint = 0
		return d
	}
	return time.Duration(l.attempt) * l.base
}

func (l *linear) Reset() { l.attempt = 0 }

// Do invokes op until it succeeds, fails with something other than a
// RateLimitError, or exhausts p.MaxAttempts. Non-rate-limit failures are
// returned unchanged on the first occurrence.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	wait := &linear{base: base}
	call := func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var rl *RateLimitError
		if errors.As(err, &rl) {
			wait.hint = rl.RetryAfter
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(wait, uint64(attempts-1)), ctx)
	return backoff.RetryNotifyWithTimerAndData(call, b, nil, p.Timer)
}
