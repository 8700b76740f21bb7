package retrieval

import "sync"

// queryCache is a bounded insertion-ordered cache for retrieval results.
// Eviction is FIFO on insert: when full, the single oldest-inserted entry is
// dropped. Lookups do not refresh entry age (this is not an LRU). Entries
// never expire; the indexes are append-only snapshots rebuilt out-of-band,
// so staleness is acceptable by design of the surrounding system.
type queryCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]Result
	order    []string // insertion order, oldest first
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{
		capacity: capacity,
		entries:  make(map[string]Result, capacity),
	}
}

func (c *queryCache) get(key string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *queryCache) put(key string, r Result) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		// Refresh the value but keep the original insertion position.
		c.entries[key] = r
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = r
	c.order = append(c.order, key)
}

func (c *queryCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
