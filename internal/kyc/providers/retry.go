package providers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a retryable provider failure is re-attempted.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy: up to two retries with exponential backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts
// the retry budget, or ctx is done. Only errors for which IsRetryable is true
// are retried.
func Do[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialInterval
	eb.MaxInterval = policy.MaxInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, policy.MaxRetries)
	b = backoff.WithContext(b, ctx)

	var result T
	err := backoff.Retry(func() error {
		v, err := op(ctx)
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}, b)
	return result, err
}
