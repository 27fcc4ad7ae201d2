// Package retry provides a bounded retry combinator for external calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation: at most MaxAttempts attempts with a
// constant Delay between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs op until it succeeds or the policy is exhausted, waiting
// Policy.Delay between attempts. The context cancels waiting between
// attempts; op receives the same context and is responsible for its own
// per-attempt deadline. Returns the last error when all attempts fail.
// onRetry (optional) is invoked before each attempt after the first.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		return op(ctx)
	}

	var notify backoff.Notify
	if onRetry != nil {
		notify = func(err error, _ time.Duration) {
			onRetry(attempt, err)
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)
	return backoff.RetryNotify(operation, b, notify)
}

// Permanent marks err as non-retryable: Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
