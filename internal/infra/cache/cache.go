// Package cache holds the category catalog caches behind port.Cache:
// InMemory (map with a janitor, the default) and Ristretto (CACHE_BACKEND=ristretto).
package cache

import (
	"sync"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/port"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a map-backed cache. A zero or negative TTL keeps entries until
// they are deleted or overwritten.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

var _ port.Cache[int] = (*InMemory[int])(nil)

// New creates an InMemory cache. When ttl is positive a janitor goroutine
// evicts expired entries every ttl until Close is called.
func New[T any](ttl time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
		done:  make(chan struct{}),
	}
	if ttl > 0 {
		go c.janitor()
	}
	return c
}

func (c *InMemory[T]) expired(e entry[T], at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// Get returns the cached value for key, or false when absent or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || c.expired(e, c.now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *InMemory[T]) Set(key string, value T) {
	e := entry[T]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len reports how many entries are held, expired ones included until evicted.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. It is safe to call more than once.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *InMemory[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemory[T]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := c.now()
	for k, e := range c.items {
		if c.expired(e, at) {
			delete(c.items, k)
		}
	}
}
