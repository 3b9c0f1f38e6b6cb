package cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RistrettoCache adapts a ristretto cache to Cache. Ristretto cannot enumerate
// its keys, so the set of written keys is tracked alongside it for Clear and
// Size.
type RistrettoCache[T any] struct {
	counters

	c   *ristretto.Cache
	ttl time.Duration

	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewRistrettoCache[T any](maxSize int, ttl time.Duration) (*RistrettoCache[T], error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxSize) * 10, // number of keys to track frequency of
		MaxCost:     int64(maxSize),
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache[T]{c: c, ttl: ttl, keys: make(map[string]struct{})}, nil
}

func (r *RistrettoCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := r.c.Get(key)
	if !ok {
		r.record(false)
		return zero, false
	}
	data, ok := v.(T)
	r.record(ok)
	if !ok {
		return zero, false
	}
	return data, true
}

// Set stores data with cost 1 and waits for the write buffer to drain so a
// following Get observes it.
func (r *RistrettoCache[T]) Set(key string, data T) {
	r.mu.Lock()
	r.keys[key] = struct{}{}
	r.mu.Unlock()
	r.c.SetWithTTL(key, data, 1, r.ttl)
	r.c.Wait()
}

func (r *RistrettoCache[T]) Delete(key string) {
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
	r.c.Del(key)
}

func (r *RistrettoCache[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.keys {
		r.c.Del(key)
	}
	r.keys = make(map[string]struct{})
}

// Size returns the number of keys written and not deleted. Entries evicted
// or expired inside ristretto are still counted until deleted.
func (r *RistrettoCache[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Close stops ristretto's background goroutines.
func (r *RistrettoCache[T]) Close() {
	r.c.Close()
}
