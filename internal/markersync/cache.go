package markersync

import (
	"sort"
	"sync"

	"crimemap/internal/models"
)

// Cache holds every incident fetched during a session, keyed by id. It
// only grows: entries are never replaced or evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[int]models.Incident
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]models.Incident)}
}

// Has reports whether id is cached.
func (c *Cache) Has(id int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Get returns the cached incident for id.
func (c *Cache) Get(id int) (models.Incident, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inc, ok := c.entries[id]
	return inc, ok
}

// Merge inserts incidents whose id is not yet cached and returns the ones
// that were added. Known ids keep their original values, including
// repeats inside the same batch.
func (c *Cache) Merge(incidents []models.Incident) []models.Incident {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []models.Incident
	for _, inc := range incidents {
		if _, ok := c.entries[inc.ID]; ok {
			continue
		}
		c.entries[inc.ID] = inc
		added = append(added, inc)
	}
	return added
}

// Len returns the number of cached incidents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns every cached id in ascending order.
func (c *Cache) IDs() []int {
	c.mu.RLock()
	ids := make([]int, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

// Each calls fn for every cached incident under the read lock. fn must
// not merge into the cache.
func (c *Cache) Each(fn func(models.Incident)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, inc := range c.entries {
		fn(inc)
	}
}
