package compiler

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the in-memory artifact cache.
const DefaultCacheSize = 1024

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Loads   uint64 `json:"loads"`
	Relinks uint64 `json:"relinks"` // hits linked again to other node instances
	Entries int    `json:"entries"`
}

// Cache holds compiled subgraphs keyed by content hash, with a side index
// from boundary identifier to its most recent key.
//
// Thread-safety: all methods are safe for concurrent use. mu serializes
// every lru call so the eviction callback can touch byID without locking.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *CompiledSubgraph]
	byID    map[string]string
	hits    uint64
	misses  uint64
	loads   uint64
	relinks uint64
}

// NewCache creates a cache holding at most size artifacts.
func NewCache(size int) (*Cache, error) {
	c := &Cache{byID: make(map[string]string)}
	l, err := lru.NewWithEvict[string, *CompiledSubgraph](size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create compiled subgraph cache: %w", err)
	}
	c.lru = l
	return c, nil
}

// onEvict runs under mu.
func (c *Cache) onEvict(key string, cs *CompiledSubgraph) {
	if c.byID[cs.Identifier] == key {
		delete(c.byID, cs.Identifier)
	}
}

// get returns the artifact for key and counts a hit.
func (c *Cache) get(key string) (*CompiledSubgraph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.lru.Get(key)
	if ok {
		c.hits++
		c.byID[cs.Identifier] = key
	}
	return cs, ok
}

// put stores an artifact. loaded distinguishes store rehydration from
// synthesis in Stats.
func (c *Cache) put(cs *CompiledSubgraph, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if loaded {
		c.loads++
	} else {
		c.misses++
	}
	c.lru.Add(cs.Key, cs)
	c.byID[cs.Identifier] = cs.Key
}

// Lookup returns the most recent artifact compiled for a boundary.
// It does not count as a hit.
func (c *Cache) Lookup(id string) (*CompiledSubgraph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.lru.Peek(key)
}

// Invalidate drops the artifact for a boundary. Returns false if there was none.
func (c *Cache) Invalidate(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	c.lru.Remove(key)
	return true
}

// relink replaces the artifact under cs.Key with one bound to other nodes.
func (c *Cache) relink(cs *CompiledSubgraph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relinks++
	c.lru.Add(cs.Key, cs)
	c.byID[cs.Identifier] = cs.Key
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Loads:   c.loads,
		Relinks: c.relinks,
		Entries: c.lru.Len(),
	}
}
