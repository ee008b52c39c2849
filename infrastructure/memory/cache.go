// Package memory provides single-instance stand-ins for the shared
// cache and the cross-instance bus, used in tests and in deployments
// without Redis.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"preview-lab/errors"
)

type entry struct {
	value     string
	counter   int64
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a process-local contract.Cache. Entries expire lazily on access.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		delete(c.entries, key)
		return "", errors.ErrCacheMiss
	}
	if e.value == "" && e.counter != 0 {
		return strconv.FormatInt(e.counter, 10), nil
	}
	return e.value, nil
}

func (c *Cache) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *Cache) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		e = entry{}
	}
	e.counter++
	c.entries[key] = e
	return e.counter, nil
}

func (c *Cache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	e.expiresAt = c.now().Add(ttl)
	c.entries[key] = e
	return nil
}
