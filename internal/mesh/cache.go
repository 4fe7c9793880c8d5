package mesh

import (
	"strconv"
	"sync"
	"weak"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// Cache maps chunk content hashes to meshes without keeping them alive.
// An entry disappears once every chunk that displays the mesh has dropped it.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]weak.Pointer[Mesh]
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uint64]weak.Pointer[Mesh])}
}

func (c *Cache) Get(hash uint64) *Mesh {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(hash)
}

func (c *Cache) getLocked(hash uint64) *Mesh {
	wp, ok := c.entries[hash]
	if !ok {
		return nil
	}
	m := wp.Value()
	if m == nil {
		delete(c.entries, hash)
	}
	return m
}

func (c *Cache) Insert(hash uint64, m *Mesh) {
	if m == nil {
		return
	}
	c.mu.Lock()
	c.entries[hash] = weak.Make(m)
	c.mu.Unlock()
}

// GetOrBuild returns the cached mesh for hash or runs build once, even when
// several goroutines ask for the same hash concurrently. hit reports whether
// no build was needed by this caller.
func (c *Cache) GetOrBuild(hash uint64, build func() (*Mesh, error)) (m *Mesh, hit bool, err error) {
	if m := c.Get(hash); m != nil {
		c.hits.Inc()
		return m, true, nil
	}
	v, err, shared := c.group.Do(strconv.FormatUint(hash, 16), func() (any, error) {
		if m := c.Get(hash); m != nil {
			return m, nil
		}
		m, err := build()
		if err != nil {
			return nil, err
		}
		c.Insert(hash, m)
		return m, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return v.(*Mesh), shared, nil
}

// Compact drops entries whose mesh has been collected and returns how many
// were removed.
func (c *Cache) Compact() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for h, wp := range c.entries {
		if wp.Value() == nil {
			delete(c.entries, h)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
