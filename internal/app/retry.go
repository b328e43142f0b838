package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/argom2011/TangoWEB/internal/domain"
)

// RetryConfig bounds how often a unit of work is replayed after a
// concurrency conflict.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      250 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// retryOnConflict runs fn until it succeeds, fails with anything other than
// domain.ErrConcurrencyConflict, or runs out of attempts. It returns the
// number of attempts made and the last error.
func retryOnConflict(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) (int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil || !errors.Is(lastErr, domain.ErrConcurrencyConflict) {
			return attempt, lastErr
		}
		if attempt == cfg.MaxAttempts {
			return attempt, lastErr
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		wait := delay
		if cfg.JitterEnabled {
			wait = jitter(delay)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return cfg.MaxAttempts, lastErr
}

// jitter spreads d uniformly over [0.9d, 1.1d].
func jitter(d time.Duration) time.Duration {
	span := int64(d) / 10
	if span <= 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(2*span+1)-span)
}
