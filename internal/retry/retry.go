// Package retry executes a single operation with capped exponential backoff.
// Only failures classified RETRYABLE are retried; any other severity is
// returned immediately so fallback and halt decisions stay with the caller.
package retry

import (
	"context"
	"time"

	"showrunner/internal/pipeerr"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
)

// Policy bounds retry behavior for one operation. The policy bounds attempt
// count only, never wall-clock time; callers wanting a hard deadline put it
// on the context.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Stage      string

	// OnRetry observes each retry transition. It must not affect control flow.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleeper overrides how backoff waits are performed (tests).
	Sleeper func(ctx context.Context, d time.Duration) error
}

// Outcome reports the successful result along with attempt accounting.
type Outcome[T any] struct {
	Result       T
	Attempts     int
	TotalDelayMs int64
}

// Do invokes op, retrying RETRYABLE failures with exponential backoff until
// MaxRetries additional attempts are exhausted. The last error is returned
// unchanged on exhaustion.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (Outcome[T], error) {
	var zero Outcome[T]
	base := policy.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	sleeper := policy.Sleeper
	if sleeper == nil {
		sleeper = sleep
	}

	var totalDelay time.Duration
	var lastErr error

	for attempt := 1; attempt <= policy.MaxRetries+1; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return Outcome[T]{Result: result, Attempts: attempt, TotalDelayMs: totalDelay.Milliseconds()}, nil
		}
		lastErr = err

		if pipeerr.SeverityOf(err) != pipeerr.SeverityRetryable {
			return zero, err
		}
		if attempt > policy.MaxRetries {
			break
		}

		delay := Backoff(attempt, base, maxDelay)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if err := sleeper(ctx, delay); err != nil {
			return zero, err
		}
		totalDelay += delay
	}

	return zero, lastErr
}

// Backoff computes the exponential delay for the given attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
