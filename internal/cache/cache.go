// Package cache keeps verified file contents in memory.
package cache

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"docvault/internal/dv"
	"docvault/internal/metrics"
)

var _ dv.ReadCache = (*Cache)(nil)

type entry struct {
	checksum string
	data     []byte
}

// Cache is an LRU of file contents bounded by a total byte budget. Each
// entry remembers the checksum its bytes were verified against, and Load
// only answers for that checksum. Entries larger than the per-entry limit
// are never stored.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, entry]
	size     int64
	maxSize  int64
	maxEntry int64
}

// New creates a cache holding at most maxSize bytes, with no single entry
// larger than maxEntrySize. A maxEntrySize of zero or above maxSize means
// maxSize.
func New(maxSize, maxEntrySize int64) (*Cache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxSize)
	}
	if maxEntrySize <= 0 || maxEntrySize > maxSize {
		maxEntrySize = maxSize
	}

	c := &Cache{maxSize: maxSize, maxEntry: maxEntrySize}
	// Entry count is unbounded; the byte budget does the evicting.
	lru, err := simplelru.NewLRU[string, entry](math.MaxInt32, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	c.lru = lru
	return c, nil
}

// onEvict runs with c.mu held, from inside the lru.
func (c *Cache) onEvict(_ string, e entry) {
	c.size -= int64(len(e.data))
	metrics.CacheBytes.Set(float64(c.size))
}

// Load returns the cached bytes of path if they were verified against
// checksum. The returned slice must not be modified.
func (c *Cache) Load(path, checksum string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(path)
	if !ok || e.checksum != checksum {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return e.data, true
}

// Save stores a copy of data for path, replacing any previous entry, and
// evicts least recently used entries until the cache fits its budget.
func (c *Cache) Save(path, checksum string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(path)
	if int64(len(data)) > c.maxEntry {
		return
	}

	c.lru.Add(path, entry{checksum: checksum, data: bytes.Clone(data)})
	c.size += int64(len(data))
	for c.size > c.maxSize {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		metrics.CacheEvictions.Inc()
	}
	metrics.CacheBytes.Set(float64(c.size))
}

// Delete drops the entry for path, if any.
func (c *Cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(path)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.size = 0
	metrics.CacheBytes.Set(0)
}

// Size returns the number of bytes held.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
