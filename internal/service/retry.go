package service

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Policy describes how transient failures are retried: attempt budget plus
// an exponential backoff curve with jitter.
type Policy struct {
	MaxRetries      int           // Retries after the first attempt
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// PolicyFor derives a policy from a configured retry budget.
func PolicyFor(maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	return p
}

// Backoff builds the backoff schedule for one call, bound to ctx.
func (p Policy) Backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0 // The attempt count is the budget, not wall time

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
}
