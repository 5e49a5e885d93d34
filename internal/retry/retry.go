// Package retry wraps remote provider calls so transient rate limiting
// is absorbed instead of surfaced. Only failures classified as rate
// limits are retried; everything else propagates immediately.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/phuslu/log"

	"docchat/internal/errs"
)

// Defaults sized for a free-tier quota window: the provider asks for ~30s
// between requests after a 429, so the first cooldown leaves margin past
// that, and attempts are capped at two (one retry).
const (
	DefaultMaxAttempts  = 2
	DefaultInitialDelay = 31500 * time.Millisecond
	DefaultMaxDelay     = 90 * time.Second
	DefaultMultiplier   = 2.0
	DefaultJitter       = 0.1
)

// Policy controls how rate-limited calls are retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the cooldown before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the cooldown after the multiplier is applied.
	MaxDelay time.Duration
	// Multiplier scales the cooldown on each further retry.
	Multiplier float64
	// Jitter adds up to this fraction of the cooldown at random.
	Jitter float64
}

// Default returns the policy used in production: one retry after a fixed
// ~31.5s cooldown.
func Default() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		Jitter:       DefaultJitter,
	}
}

// Do invokes op, retrying after a cooldown while the failure is a rate
// limit and attempts remain. The final error, rate limit or not, is
// returned unchanged. The cooldown wait is interrupted by ctx.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("call succeeded after rate-limit retry")
			}
			return nil
		}
		if !errs.IsRateLimit(lastErr) || attempt == attempts {
			return lastErr
		}

		delay := p.delay(attempt)
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Dur("cooldown", delay).
			Msg("provider rate limited, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		var opErr error
		out, opErr = op()
		return opErr
	})
	return out, err
}

// delay computes the cooldown before the retry following attempt.
func (p Policy) delay(attempt int) time.Duration {
	base := p.InitialDelay
	if base <= 0 {
		base = DefaultInitialDelay
	}

	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * rand.Float64()
	}

	out := time.Duration(d)
	if p.MaxDelay > 0 && out > p.MaxDelay {
		out = p.MaxDelay
	}
	return out
}
