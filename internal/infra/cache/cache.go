// Package cache provides an in-memory TTL cache with sliding expiry and
// eviction callbacks. It backs the session registry.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	onEvict func(key string, value T)

	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// Option configures an InMemory cache.
type Option[T any] func(*InMemory[T])

// WithOnEvict registers fn to run for every entry that expires or is
// deleted. fn runs outside the cache lock.
func WithOnEvict[T any](fn func(key string, value T)) Option[T] {
	return func(c *InMemory[T]) { c.onEvict = fn }
}

// New creates a new in-memory cache with the given TTL and starts its
// cleanup goroutine. Call Close to stop it.
func New[T any](ttl time.Duration, opts ...Option[T]) *InMemory[T] {
	c := &InMemory[T]{
		items:   make(map[string]entry[T]),
		ttl:     ttl,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Touch is Get that also restarts the entry's TTL.
func (c *InMemory[T]) Touch(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	e.expiresAt = time.Now().Add(c.ttl)
	c.items[key] = e
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a value from the cache and fires the eviction callback.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	e, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, e.value)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine and evicts every remaining entry.
func (c *InMemory[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.stopped

	c.mu.Lock()
	items := c.items
	c.items = make(map[string]entry[T])
	c.mu.Unlock()

	c.evict(items)
}

// sweepsPerTTL bounds how long an expired entry outlives its TTL to ttl/4.
const sweepsPerTTL = 4

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	defer close(c.stopped)

	ticker := time.NewTicker(max(c.ttl/sweepsPerTTL, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evict(c.removeExpired(time.Now()))
		}
	}
}

func (c *InMemory[T]) removeExpired(now time.Time) map[string]entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make(map[string]entry[T])
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			expired[k] = v
			delete(c.items, k)
		}
	}
	return expired
}

func (c *InMemory[T]) evict(items map[string]entry[T]) {
	if c.onEvict == nil {
		return
	}
	for k, v := range items {
		c.onEvict(k, v.value)
	}
}
