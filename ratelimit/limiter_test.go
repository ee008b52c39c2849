package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"preview-lab/errors"
	"preview-lab/infrastructure/memory"
)

func TestLimiter_RejectsBeyondWindowLimit(t *testing.T) {
	req := require.New(t)
	limiter := NewLimiter(memory.NewCache(), 100, time.Minute, slog.Default())

	// Given 100 operations within one window
	for i := 0; i < 100; i++ {
		req.NoError(limiter.Allow(context.Background(), "actor-1"))
	}

	// When the 101st arrives
	err := limiter.Allow(context.Background(), "actor-1")

	// Then it is rejected
	req.ErrorIs(err, errors.ErrRateLimited)
}

func TestLimiter_WindowsAreIndependentPerActor(t *testing.T) {
	req := require.New(t)
	limiter := NewLimiter(memory.NewCache(), 1, time.Minute, slog.Default())

	req.NoError(limiter.Allow(context.Background(), "actor-1"))
	req.ErrorIs(limiter.Allow(context.Background(), "actor-1"), errors.ErrRateLimited)

	// Another actor has its own counter
	req.NoError(limiter.Allow(context.Background(), "actor-2"))
}

func TestLimiter_NewWindowResetsCounter(t *testing.T) {
	req := require.New(t)
	limiter := NewLimiter(memory.NewCache(), 1, time.Minute, slog.Default())

	base := time.Date(2026, 8, 30, 10, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	req.NoError(limiter.Allow(context.Background(), "actor-1"))
	req.ErrorIs(limiter.Allow(context.Background(), "actor-1"), errors.ErrRateLimited)

	// The next fixed window starts a fresh counter key
	limiter.now = func() time.Time { return base.Add(time.Minute) }
	req.NoError(limiter.Allow(context.Background(), "actor-1"))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, error) {
	return "", fmt.Errorf("cache down")
}

func (brokenCache) SetWithExpiry(context.Context, string, string, time.Duration) error {
	return fmt.Errorf("cache down")
}

func (brokenCache) Increment(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("cache down")
}

func (brokenCache) Expire(context.Context, string, time.Duration) error {
	return fmt.Errorf("cache down")
}

func TestLimiter_FailsOpenWhenCounterStoreDown(t *testing.T) {
	limiter := NewLimiter(brokenCache{}, 1, time.Minute, slog.Default())

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Allow(context.Background(), "actor-1"))
	}
}
