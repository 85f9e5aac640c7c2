package figma

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 256

// Cache stores raw design-API responses keyed by request identity so that
// repeated extractions within the TTL window never touch the network. It is
// safe for concurrent use across jobs.
type Cache struct {
	lru *expirable.LRU[string, []byte]
}

// NewCache returns a response cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, []byte](defaultCacheSize, nil, ttl)}
}

// CacheKey identifies one upstream request. Scale and format are zero/empty
// for non-image endpoints.
func CacheKey(fileKey, endpoint, nodeID string, scale int, format string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", fileKey, endpoint, nodeID, scale, format)
}

// Get returns the cached payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Add stores a payload under key.
func (c *Cache) Add(key string, payload []byte) {
	c.lru.Add(key, payload)
}

// PurgeFile drops every cached response belonging to fileKey.
func (c *Cache) PurgeFile(fileKey string) {
	prefix := fileKey + "|"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
