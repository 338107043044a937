// Package images resolves a hero image through a strict fallback chain.
package images

import (
	"sync"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Cache is an explicit TTL cache for search results, constructed with an
// injected TTL and clock rather than captured as hidden package state.
type Cache struct {
	ttl   time.Duration
	clock discovery.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	image  discovery.ResolvedImage
	expiry time.Time
}

// NewCache builds a Cache with the given TTL.
func NewCache(ttl time.Duration, clock discovery.Clock) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached image for the key if present and unexpired.
func (c *Cache) Get(key string) (discovery.ResolvedImage, bool) {
	if c == nil {
		return discovery.ResolvedImage{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.clock.Now().After(entry.expiry) {
		return discovery.ResolvedImage{}, false
	}
	return entry.image, true
}

// Set stores the image under the key with the configured TTL.
func (c *Cache) Set(key string, image discovery.ResolvedImage) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{image: image, expiry: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}
