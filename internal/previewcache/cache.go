// Package previewcache holds recently viewed timeline previews in memory.
//
// The cache is a bounded least-recently-used map from record identifier to
// the record's ordered preview frames. Reads promote an entry; inserting
// into a full cache evicts the least recently used entry.
package previewcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"media-library/internal/metrics"
)

// DefaultCapacity is the number of previews kept when no capacity is configured.
const DefaultCapacity = 150

// Cache is a bounded LRU of preview frame sequences. It is safe for
// concurrent use.
type Cache struct {
	lru      *lru.Cache[string, [][]byte]
	capacity int
}

// New creates a cache holding at most capacity previews. A non-positive
// capacity selects DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, [][]byte](capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes
		panic(err)
	}
	return &Cache{lru: l, capacity: capacity}
}

// Get returns the preview for id and marks it most recently used.
func (c *Cache) Get(id string) ([][]byte, bool) {
	frames, ok := c.lru.Get(id)
	if ok {
		metrics.PreviewCacheHits.Inc()
	} else {
		metrics.PreviewCacheMisses.Inc()
	}
	return frames, ok
}

// Contains reports whether id is cached without changing its recency.
func (c *Cache) Contains(id string) bool {
	return c.lru.Contains(id)
}

// Set inserts or overwrites the preview for id, evicting the least recently
// used entry when the cache is full. Nil previews are ignored.
func (c *Cache) Set(id string, frames [][]byte) {
	if frames == nil {
		return
	}
	if evicted := c.lru.Add(id, frames); evicted {
		metrics.PreviewCacheEvictions.Inc()
	}
	metrics.PreviewCacheEntries.Set(float64(c.lru.Len()))
}

// Delete removes the preview for id, if present.
func (c *Cache) Delete(id string) {
	c.lru.Remove(id)
	metrics.PreviewCacheEntries.Set(float64(c.lru.Len()))
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.lru.Purge()
	metrics.PreviewCacheEntries.Set(0)
}

// Len returns the number of cached previews.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of cached previews.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys returns the cached identifiers from least to most recently used.
func (c *Cache) Keys() []string {
	return c.lru.Keys()
}

// Invalidate drops the previews of the given records.
func (c *Cache) Invalidate(ids ...string) {
	for _, id := range ids {
		c.lru.Remove(id)
	}
	metrics.PreviewCacheEntries.Set(float64(c.lru.Len()))
}
