// Package cache holds the read caches in front of the ledger store: an
// in-process LRU with TTL and a ristretto-backed alternative.
package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	BackendLRU       = "lru"
	BackendRistretto = "ristretto"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Clear drops every entry
	Clear()

	// Size returns the current number of items in the cache
	Size() int

	// Stats reports hit and miss counters since creation
	Stats() Stats
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

// counters is embedded by both implementations.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// New builds a cache of the named backend.
func New[T any](backend string, maxSize int, ttl time.Duration) (Cache[T], error) {
	switch backend {
	case "", BackendLRU:
		return NewLRUCache[T](maxSize, ttl), nil
	case BackendRistretto:
		return NewRistrettoCache[T](maxSize, ttl)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	logger      *slog.Logger
	caches      []Cleaner
	closers     []closer
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
}

type closer interface {
	Close()
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds c to the periodic cleanup when it supports it. Caches that
// expire entries on their own are not swept, but are closed by Stop if they
// have a Close method.
func (m *Manager) Register(c any) {
	if cl, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cl)
	}
	if cl, ok := c.(closer); ok {
		m.closers = append(m.closers, cl)
	}
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			totalCleaned := 0
			for _, c := range m.caches {
				totalCleaned += c.CleanExpired()
			}
			if totalCleaned > 0 {
				m.logger.Debug("Expired cache entries removed", "count", totalCleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine and closes the registered caches that have
// a Close method. Later calls do nothing.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if m.started {
			<-m.cleanupDone
		}
		for _, c := range m.closers {
			c.Close()
		}
	})
}
