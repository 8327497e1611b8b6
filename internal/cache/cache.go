// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cache provides typed TTL caches backed by memory or Redis.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrency-safe key/value cache with per-entry expiry.
type Cache[V any] interface {
	// Get returns the value and true when present and unexpired.
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	Clear()
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

type entry[V any] struct {
	value      V
	expiration time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	now func() time.Time
}

// WithNow replaces the time source used for expiry.
func WithNow(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) { c.now = now }
}

// Memory is an in-process Cache with an optional janitor goroutine that
// drops expired entries.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	now     func() time.Time
	stats   counters

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a memory cache. A positive cleanupInterval starts the
// janitor; call Stop to end it.
func NewMemory[V any](cleanupInterval time.Duration, opts ...MemoryOption) *Memory[V] {
	cfg := memoryConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Memory[V]{
		entries: make(map[string]entry[V]),
		now:     cfg.now,
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || !c.now().Before(e.expiration) {
		c.stats.misses.Add(1)
		var zero V
		return zero, false
	}
	c.stats.hits.Add(1)
	return e.value, true
}

func (c *Memory[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiration: c.now().Add(ttl)}
	c.mu.Unlock()
	c.stats.sets.Add(1)
}

func (c *Memory[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Memory[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

func (c *Memory[V]) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(size)
}

// DeleteExpired removes expired entries and returns how many were dropped.
func (c *Memory[V]) DeleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if !now.Before(e.expiration) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.evictions.Add(int64(count))
	return count
}

// Stop ends the janitor. Safe to call more than once.
func (c *Memory[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Memory[V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

var _ Cache[string] = (*Memory[string])(nil)
