package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"recordwatch/internal/domain"
)

// Policy is the shared bounded-backoff configuration injected at every
// external-call site. Only transient errors are retried; permanent errors
// abort immediately.
type Policy struct {
	MaxAttempts         uint64
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// Default mirrors the external-call contract: 3 attempts, 2-10s exponential
// backoff with jitter.
func Default() Policy {
	return Policy{
		MaxAttempts:         3,
		InitialInterval:     2 * time.Second,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.2,
	}
}

// Do runs op under the policy until it succeeds, returns a permanent error,
// or attempts are exhausted.
func (p Policy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.RandomizationFactor

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if domain.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
