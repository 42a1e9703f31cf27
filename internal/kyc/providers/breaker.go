package providers

import (
	"context"

	"kycgate/pkg/platform/circuit"
)

// tripsBreaker reports whether err says the provider itself is unhealthy.
// Rejections and bad input are the caller's problem and leave the breaker alone.
func tripsBreaker(err error) bool {
	switch GetCategory(err) {
	case ErrorTimeout, ErrorProviderOutage, ErrorRateLimited:
		return true
	default:
		return false
	}
}

// Guard runs op through the breaker. While the breaker is open the call fails
// fast with a provider_outage error. A nil breaker runs op directly.
func Guard[T any](ctx context.Context, b *circuit.Breaker, providerID string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return op(ctx)
	}
	if !b.Allow() {
		return zero, NewProviderError(ErrorProviderOutage, providerID, "circuit open", nil)
	}

	v, err := op(ctx)
	switch {
	case err == nil:
		b.RecordSuccess()
	case ctx.Err() != nil:
		// cancelled by the caller, says nothing about the provider
	case tripsBreaker(err):
		b.RecordFailure()
	}
	return v, err
}
