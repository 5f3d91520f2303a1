package inventory

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig controls the exponential backoff schedule for upstream calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// OnRetry is invoked before each re-attempt sleep, with the attempt
	// number that just failed (1-based) and the error it produced.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the standard schedule: three attempts starting
// at 100ms, doubling up to 5s, with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// normalized fills zero fields with defaults so a partially specified config
// still produces a sane schedule.
func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// backoffDelay computes the base delay before attempt k+1, where k is the
// number of attempts already made (k >= 1). The delay grows geometrically
// and is capped at MaxDelay.
func (c RetryConfig) backoffDelay(k int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < k; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// jitteredDelay spreads the base delay uniformly over [d/2, 3d/2] so
// simultaneous clients do not retry in lockstep. The result stays within
// [0, MaxDelay].
func (c RetryConfig) jitteredDelay(base time.Duration) time.Duration {
	if !c.Jitter || base <= 0 {
		return base
	}
	half := base / 2
	d := half + time.Duration(rand.Int64N(int64(base)+1))
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// Do runs fn up to cfg.MaxAttempts times, sleeping between attempts per the
// backoff schedule. It stops early when fn succeeds, when the error is not
// retryable, or when ctx is done. There is no sleep after the final attempt.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if err := sleepCtx(ctx, cfg.jitteredDelay(cfg.backoffDelay(attempt))); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
