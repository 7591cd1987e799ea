// Package cache provides the TTL-keyed prediction cache consumed by the
// prediction path. Entries are keyed by (model id, input hash).
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores prediction outputs with a per-entry lifetime
type Cache interface {
	// Get returns the cached value and whether an unexpired entry exists
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// Set stores a value with the given lifetime
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

// MemoryCache is a mutex-guarded in-process cache with lazy expiry
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns an unexpired entry, dropping it if it has expired
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; the entry may have been replaced
		if current, ok := c.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with the given lifetime
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
