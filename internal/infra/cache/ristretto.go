package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Ristretto is a TTL cache backed by dgraph-io/ristretto.
// Every entry costs 1, so MaxCost is the maximum number of entries.
type Ristretto[T any] struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewRistretto creates a ristretto cache holding up to maxEntries values.
func NewRistretto[T any](ttl time.Duration, maxEntries int64) (*Ristretto[T], error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Ristretto[T]{cache: c, ttl: ttl}, nil
}

// Get retrieves a value from the cache.
func (r *Ristretto[T]) Get(key string) (T, bool) {
	v, ok := r.cache.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set stores a value and waits until it is visible to Get.
func (r *Ristretto[T]) Set(key string, value T) {
	r.cache.SetWithTTL(key, value, 1, r.ttl)
	r.cache.Wait()
}

// Delete removes a value from the cache.
func (r *Ristretto[T]) Delete(key string) {
	r.cache.Del(key)
}

// Close releases the cache's goroutines.
func (r *Ristretto[T]) Close() {
	r.cache.Close()
}
