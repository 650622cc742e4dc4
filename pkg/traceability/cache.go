package traceability

import (
	"sync"

	"gatekeeper-hq/gatekeeper/pkg/dsl/compiler"
)

// Cache stores compiled metadata by rule id.
type Cache interface {
	Get(ruleID string) (*compiler.Metadata, bool)
	Put(ruleID string, meta *compiler.Metadata)
	Purge()
}

// MemoryCache is a Cache backed by a map.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*compiler.Metadata
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*compiler.Metadata)}
}

// Get implements Cache.
func (c *MemoryCache) Get(ruleID string) (*compiler.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[ruleID]
	return m, ok
}

// Put implements Cache.
func (c *MemoryCache) Put(ruleID string, meta *compiler.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ruleID] = meta
}

// Purge implements Cache.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*compiler.Metadata)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
