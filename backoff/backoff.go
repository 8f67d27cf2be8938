// Package backoff provides pluggable retry delay strategies for broker
// reconnection. All strategies are stateless and safe for concurrent use.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
type Strategy func(attempt int) time.Duration

// Constant always waits the same interval regardless of attempt number.
func Constant(interval time.Duration) Strategy {
	return func(int) time.Duration {
		return interval
	}
}

// Exponential doubles the delay each attempt, capped at maxDelay.
// Delay = min(initial * 2^(attempt-1), maxDelay). A maxDelay of zero
// means uncapped.
func Exponential(initial, maxDelay time.Duration) Strategy {
	return func(attempt int) time.Duration {
		d := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
		if maxDelay > 0 && d > maxDelay {
			return maxDelay
		}
		return d
	}
}

// ExponentialJitter applies full jitter to an exponential base:
// a random delay in [0, min(initial * 2^(attempt-1), maxDelay)].
// This prevents thundering herd when many clients reconnect at once.
func ExponentialJitter(initial, maxDelay time.Duration) Strategy {
	exp := Exponential(initial, maxDelay)
	return func(attempt int) time.Duration {
		return time.Duration(rand.Float64() * float64(exp(attempt))) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
}

// Sleep waits for the strategy's delay at the given attempt, or returns
// early with ctx.Err() when the context is canceled.
func Sleep(ctx context.Context, s Strategy, attempt int) error {
	t := time.NewTimer(s(attempt))
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
