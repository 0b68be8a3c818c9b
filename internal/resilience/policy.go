package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/intervu/live-interview/internal/config"
)

// Policy wraps calls to one external dependency in a circuit breaker and a retry loop
type Policy struct {
	Breaker *CircuitBreaker
	Retry   *RetryConfig
}

// NewPolicy builds a policy for the named dependency from configuration
func NewPolicy(name string, cfg *config.Config) *Policy {
	return &Policy{
		Breaker: NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures, time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second),
		Retry:   NewRetryConfig(cfg.RetryMaxAttempts, time.Duration(cfg.RetryInitialBackoff)*time.Millisecond),
	}
}

// Do runs fn with retries on transient errors; every attempt passes through
// the breaker and an open breaker ends the loop.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, func(ctx context.Context) error {
		return p.Breaker.Execute(ctx, fn)
	}, p.Retry, func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		return IsTransientError(err)
	})
}
