package adsb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/unklstewy/skytrail/internal/logging"
)

// RetryConfig configures how a feed retries a failed fetch.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first (default: 3)
	MaxRetries int

	// InitialDelay is the pause before the first retry (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay caps the backoff (default: 60 seconds)
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry (default: 2.0)
	Multiplier float64

	// RespectRetryAfter waits for the server's Retry-After on a 429
	// instead of the computed backoff (default: true)
	RespectRetryAfter bool

	// Logger receives a warning for every failed attempt; may be nil
	Logger *logging.Logger
}

// DefaultRetryConfig returns the retry policy feeds use unless configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// backoff returns the pause before retry number n (0-based):
// min(InitialDelay * Multiplier^n, MaxDelay).
func (cfg RetryConfig) backoff(n int) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(mult, float64(n)))
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

// delay returns the pause after err on retry number n.
func (cfg RetryConfig) delay(n int, err error) time.Duration {
	if rle, ok := IsRateLimitError(err); ok && cfg.RespectRetryAfter && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return cfg.backoff(n)
}

// retryable reports whether repeating the call that returned err could help.
// Cancellation and client errors other than 429 are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// Retry calls fn until it succeeds, fails with a final error, or MaxRetries
// retries have been made. The wait between attempts follows cfg and is cut
// short by ctx.
//
//	aircraft, err := Retry(ctx, DefaultRetryConfig(), func() ([]Aircraft, error) {
//	    return client.GetAircraft(ctx, lat, lon, radius)
//	})
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return result, err
		}
		if attempt >= cfg.MaxRetries {
			return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, err)
		}

		wait := cfg.delay(attempt, err)
		if rle, ok := IsRateLimitError(err); ok && rle.Headers.Remaining >= 0 {
			cfg.Logger.Warn("Rate limit hit",
				slog.Int("remaining", rle.Headers.Remaining),
				slog.Int("limit", rle.Headers.Limit),
				slog.Time("reset", rle.Headers.Reset))
		}
		cfg.Logger.Warn("Attempt failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
