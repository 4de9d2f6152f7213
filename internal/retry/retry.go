// Package retry centralizes the bounded exponential backoff applied to every
// external provider call.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor, 0 disables it.
	Jitter float64
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error not marked Permanent.
	Retryable func(error) bool
	// Notify is called before each wait.
	Notify func(err error, wait time.Duration)
}

// DefaultPolicy returns three attempts starting at 500ms, doubling, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
		Jitter:          0.2,
	}
}

// Permanent marks err as not retryable regardless of the policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.Notify != nil {
		notify = p.Notify
	}
	return backoff.RetryNotify(operation, bo, notify)
}

// Attempts runs op under the policy and also reports how many attempts were made.
func (p Policy) Attempts(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	n := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		n++
		return op(ctx)
	})
	return n, err
}
