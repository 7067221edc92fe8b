package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Strategy selects how the delay grows between attempts
type Strategy int

const (
	// Constant waits InitialBackoff between every attempt.
	Constant Strategy = iota
	// Linear waits attempt × InitialBackoff.
	Linear
	// Exponential waits InitialBackoff × BackoffMultiplier^(attempt-1).
	Exponential
)

// Config holds retry strategy configuration
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Strategy          Strategy
	// Sleep is replaced in tests; nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns sensible retry defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Strategy:          Exponential,
	}
}

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Retryable is a function that can be retried
type Retryable[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs fn until it succeeds, returns a permanent error or runs out of attempts.
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, op string, fn Retryable[T]) (T, error) {
	var zero T
	var lastErr error
	if log == nil {
		log = slog.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrPermanent) {
			return zero, err
		}

		lastErr = err
		if attempt < cfg.MaxAttempts {
			backoff := Backoff(attempt, cfg)
			log.Warn("operation failed, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
			if err := sleep(ctx, backoff); err != nil {
				return zero, err
			}
		}
	}

	return zero, fmt.Errorf("operation '%s' failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

// Backoff returns the wait after the given 1-based attempt.
func Backoff(attempt int, cfg *Config) time.Duration {
	var backoff time.Duration
	switch cfg.Strategy {
	case Constant:
		backoff = cfg.InitialBackoff
	case Linear:
		backoff = time.Duration(attempt) * cfg.InitialBackoff
	default:
		backoff = time.Duration(float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))
	}
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
