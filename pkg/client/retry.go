package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govuk_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "govuk_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "govuk_retry_exhausted_total",
		Help: "Total number of calls that failed after exhausting all attempts",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial one).
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after every retry.
	BackoffMultiplier float64

	// Jitter randomises each wait by ±Jitter (0.2 = ±20%).
	Jitter float64
}

// DefaultRetryConfig returns the default retry configuration: the initial
// attempt plus 10 retries, starting at 1s and doubling up to 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       11,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

// Retry runs fn until it succeeds or cfg.MaxAttempts attempts have failed.
// Attempts run one after another, numbered from 1. Failures between attempts
// are logged and counted but not returned; the caller sees either nil or the
// last error wrapped in ErrRetryExhausted.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errClass := classifyError(err)

		if attempt >= maxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(errClass)).Inc()

		wait := withJitter(backoff, cfg.Jitter)
		retryBackoffSeconds.Observe(wait.Seconds())

		log.Debug().
			Err(err).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.Inc()
	log.Warn().
		Err(lastErr).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// withJitter spreads d by ±jitter to avoid synchronised retries.
func withJitter(d time.Duration, jitter float64) time.Duration {
	if d <= 0 || jitter <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 - jitter + rand.Float64()*2*jitter))
}
