package resilience

import "context"

// Guarded runs fn through the breaker, retrying transient failures. A nil
// breaker or config is allowed.
func Guarded(ctx context.Context, cb *CircuitBreaker, config *RetryConfig, fn RetryableFunc) error {
	return Retry(ctx, func(ctx context.Context) error {
		if cb == nil {
			return fn(ctx)
		}
		return cb.Call(func() error { return fn(ctx) })
	}, config, IsRetryableNetworkError)
}
