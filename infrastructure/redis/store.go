// Package redis adapts the shared Redis instance to the cache and bus
// contracts. All cross-instance coordination (rate-limit counters,
// snapshots, pub/sub fan-out) goes through here.
package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"preview-lab/contract"
	"preview-lab/errors"
)

type Store struct {
	client *redis.Client
	log    *slog.Logger
}

func NewStore(client *redis.Client, log *slog.Logger) *Store {
	return &Store{client: client, log: log}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errors.ErrCacheMiss
	}
	return value, err
}

func (s *Store) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

// Subscribe pattern-subscribes and pumps messages until the context is
// canceled. The pump drops nothing itself; go-redis buffers internally.
func (s *Store) Subscribe(ctx context.Context, patterns ...string) (<-chan contract.BusMessage, error) {
	sub := s.client.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan contract.BusMessage)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- contract.BusMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
