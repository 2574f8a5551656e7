package blobio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how transient failures are retried.
//
// Backoff is exponential with jitter and capped at MaxInterval. Only errors that
// Classify reports as KindTransient are retried; everything else propagates on
// the first attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// Multiplier grows the delay after every attempt.
	Multiplier float64

	// RandomizationFactor spreads the delay by +/- this fraction.
	RandomizationFactor float64

	// AttemptTimeout bounds every single RPC attempt. A timed-out attempt is
	// transient. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         5,
		InitialInterval:     200 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
		AttemptTimeout:      2 * time.Minute,
	}
}

// NoRetryPolicy performs exactly one attempt.
func NoRetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 1
	return p
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.RandomizationFactor
	// The attempt budget bounds retries, not wall-clock time.
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

// retrier executes RPCs under a RetryPolicy and reports retries to the logger
// and metrics collector.
type retrier struct {
	policy  RetryPolicy
	logger  *Logger
	metrics MetricsCollector
}

func (r *retrier) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.policy.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.policy.AttemptTimeout)
}

// do runs op until it succeeds, fails permanently, or the attempt budget is spent.
// A transient failure that outlives the budget is returned as *RetriesExhaustedError.
func (r *retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++

		actx, cancel := r.attemptContext(ctx)
		defer cancel()

		err := fn(actx)
		if err == nil {
			return nil
		}

		// Parent cancellation is never retried, even though the attempt
		// context surfaces it as a deadline.
		if cerr := ctx.Err(); cerr != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", op, cerr))
		}

		if !IsTransient(err) {
			return backoff.Permanent(err)
		}

		return err
	}, r.policy.newBackOff(ctx), func(err error, next time.Duration) {
		r.logger.LogRetry(ctx, op, attempts, next, err)
		r.metrics.RecordRetry(op, err)
	})

	if err == nil {
		return nil
	}

	if cerr := ctx.Err(); cerr != nil {
		if errors.Is(err, cerr) {
			return err
		}
		return fmt.Errorf("%s: %w", op, cerr)
	}

	if IsTransient(err) {
		return &RetriesExhaustedError{Op: op, Attempts: attempts, cause: err}
	}

	return err
}

// retryValue is do for operations that produce a value.
func retryValue[T any](ctx context.Context, r *retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := r.do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})

	return out, err
}
