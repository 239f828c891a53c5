package errs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	BackoffFactor  float64
	MaxDelay       time.Duration
}

// DefaultRetryConfig mirrors the original pipeline's retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      60 * time.Second,
	}
}

// RetryWithBackoff retries fn up to cfg.MaxAttempts times, sleeping an
// exponentially growing, jittered delay between attempts. It returns the
// last error if every attempt fails, or nil as soon as one succeeds.
func RetryWithBackoff(ctx context.Context, component string, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.Multiplier = cfg.BackoffFactor
	eb.MaxInterval = cfg.MaxDelay
	eb.MaxElapsedTime = 0 // bounded by attempt count, not elapsed wall time
	eb.RandomizationFactor = 0.1

	withCtx := backoff.WithContext(eb, ctx)
	bounded := backoff.WithMaxRetries(withCtx, uint64(cfg.MaxAttempts-1))

	attempt := 0
	var lastErr error
	err := backoff.RetryNotify(func() error {
		attempt++
		lastErr = fn()
		return lastErr
	}, bounded, func(err error, delay time.Duration) {
		log.Warn().Str("event", "[RETRY_ATTEMPT]").
			Str("component", component).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("next_delay", delay).
			Err(err).
			Msg("retrying after failure")
	})
	if err != nil {
		return lastErr
	}
	return nil
}
