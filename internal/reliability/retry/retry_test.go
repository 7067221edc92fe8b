package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffStrategies(t *testing.T) {
	cfg := &Config{InitialBackoff: 100 * time.Millisecond, BackoffMultiplier: 2}

	cfg.Strategy = Constant
	assert.Equal(t, 100*time.Millisecond, Backoff(3, cfg))

	cfg.Strategy = Linear
	assert.Equal(t, 100*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, Backoff(4, cfg))

	cfg.Strategy = Exponential
	assert.Equal(t, 400*time.Millisecond, Backoff(3, cfg))

	cfg.MaxBackoff = 250 * time.Millisecond
	assert.Equal(t, 250*time.Millisecond, Backoff(3, cfg))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var waits []time.Duration
	cfg := &Config{
		MaxAttempts:    5,
		InitialBackoff: 10 * time.Millisecond,
		Strategy:       Linear,
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}

	got, err := Do(context.Background(), cfg, quietLogger(), "flaky", func(_ context.Context, attempt int) (int, error) {
		if attempt < 3 {
			return 0, errors.New("transient")
		}
		return attempt, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, waits)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := &Config{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	cause := errors.New("disk full")

	_, err := Do(context.Background(), cfg, quietLogger(), "write", func(context.Context, int) (struct{}, error) {
		calls++
		return struct{}{}, cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	cfg := &Config{MaxAttempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}

	_, err := Do(context.Background(), cfg, nil, "op", func(context.Context, int) (int, error) {
		calls++
		return 0, Permanent(io.ErrUnexpectedEOF)
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, DefaultConfig(), quietLogger(), "op", func(context.Context, int) (int, error) {
		t.Fatal("fn must not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
