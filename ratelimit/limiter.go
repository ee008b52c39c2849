// Package ratelimit tracks per-actor request volume in fixed windows
// over the shared counter store. One counter key per actor per window,
// expired by TTL; the decision itself is stateless.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"preview-lab/contract"
	"preview-lab/errors"
)

type Limiter struct {
	cache  contract.Cache
	limit  int64
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

func NewLimiter(cache contract.Cache, limit int64, window time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{cache: cache, limit: limit, window: window, log: log, now: time.Now}
}

// Allow counts one operation for the actor and rejects once the window
// limit is exceeded. Counter-store failures fail open with a warning:
// a degraded cache must not take the whole service down with it.
func (l *Limiter) Allow(ctx context.Context, actorID string) error {
	windowStart := l.now().Truncate(l.window).Unix()
	key := fmt.Sprintf("ratelimit:%s:%d", actorID, windowStart)

	count, err := l.cache.Increment(ctx, key)
	if err != nil {
		l.log.Warn("Rate limit counter unavailable, allowing", "actor", actorID, "error", err)
		return nil
	}
	if count == 1 {
		// New window: stale counters expire on their own.
		if err := l.cache.Expire(ctx, key, l.window); err != nil {
			l.log.Warn("Rate limit expiry failed", "key", key, "error", err)
		}
	}
	if count > l.limit {
		return errors.ErrRateLimited
	}
	return nil
}
