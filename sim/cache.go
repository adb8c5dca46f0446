package sim

import (
	"container/list"
	"sync"
	"time"
)

// CacheEntry is a cached snapshot of a ContextItem.
// Found is false when the cached fetch observed an absent key.
// Generation is the group invalidation generation the entry was fetched under
// (HierarchicalCache only).
type CacheEntry struct {
	Item       ContextItem
	Found      bool
	CachedAt   time.Time
	Generation uint64
}

// CacheStats counts lookups against one cache level.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Add accumulates o into s.
func (s *CacheStats) Add(o CacheStats) {
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Evictions += o.Evictions
}

// HitRate returns Hits / (Hits + Misses), or 0 when there were no lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type orderedEntry struct {
	key   string
	entry CacheEntry
}

// OrderedCache is a bounded map evicting in insertion order (FIFO, not LRU).
// Overwriting an existing key updates its entry but keeps its original position.
// A non-positive capacity means unbounded.
//
// Thread-safety: NOT thread-safe. Shared instances must be wrapped (see GroupCache).
type OrderedCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = earliest inserted
	stats    CacheStats
}

// NewOrderedCache creates an empty cache holding at most capacity entries.
func NewOrderedCache(capacity int) *OrderedCache {
	return &OrderedCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the entry for key and counts a hit or miss.
func (c *OrderedCache) Get(key string) (CacheEntry, bool) {
	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return CacheEntry{}, false
	}
	c.stats.Hits++
	return el.Value.(*orderedEntry).entry, true
}

// GetValid is Get for entries that may have expired. An entry present but
// rejected by valid is removed and counted as a miss, not a hit.
func (c *OrderedCache) GetValid(key string, valid func(CacheEntry) bool) (CacheEntry, bool) {
	el, ok := c.entries[key]
	if ok && !valid(el.Value.(*orderedEntry).entry) {
		c.order.Remove(el)
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return CacheEntry{}, false
	}
	c.stats.Hits++
	return el.Value.(*orderedEntry).entry, true
}

// Put inserts or overwrites key, evicting the earliest inserted entries
// while the cache is over capacity. Returns the evicted keys.
func (c *OrderedCache) Put(key string, entry CacheEntry) []string {
	if el, ok := c.entries[key]; ok {
		el.Value.(*orderedEntry).entry = entry
		return nil
	}
	c.entries[key] = c.order.PushBack(&orderedEntry{key: key, entry: entry})

	var evicted []string
	for c.capacity > 0 && c.order.Len() > c.capacity {
		front := c.order.Front()
		oe := front.Value.(*orderedEntry)
		c.order.Remove(front)
		delete(c.entries, oe.key)
		c.stats.Evictions++
		evicted = append(evicted, oe.key)
	}
	return evicted
}

// Remove deletes key if present.
func (c *OrderedCache) Remove(key string) bool {
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.entries, key)
	return true
}

// Len returns the number of cached entries.
func (c *OrderedCache) Len() int {
	return c.order.Len()
}

// Keys returns cached keys from earliest to latest inserted.
func (c *OrderedCache) Keys() []string {
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*orderedEntry).key)
	}
	return keys
}

// Stats returns the hit/miss/eviction counters.
func (c *OrderedCache) Stats() CacheStats {
	return c.stats
}

// GroupCache is the L2 cache shared by every agent of one group.
// All access is serialized by one mutex per group.
//
// Besides the entries it tracks a per-key invalidation generation. Members
// stamp their private L1 entries with the generation current at fetch time;
// an L1 entry whose stamp no longer matches was invalidated by a write from
// some agent of the group and must not be served.
type GroupCache struct {
	mu          sync.Mutex
	group       int
	cache       *OrderedCache
	generations map[string]uint64
}

func (g *GroupCache) Get(key string) (CacheEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Get(key)
}

// PutAt inserts entry only if key's generation is still gen, so a fetch
// that raced with an invalidation cannot repopulate the shared level.
func (g *GroupCache) PutAt(key string, entry CacheEntry, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generations[key] != gen {
		return false
	}
	g.cache.Put(key, entry)
	return true
}

// Invalidate removes key and advances its generation, retiring every
// member's L1 copy of it.
func (g *GroupCache) Invalidate(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Remove(key)
	g.generations[key]++
}

// Generation returns the current invalidation generation of key.
func (g *GroupCache) Generation(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generations[key]
}

func (g *GroupCache) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Len()
}

func (g *GroupCache) Stats() CacheStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Stats()
}

// Group returns the group index this cache serves.
func (g *GroupCache) Group() int {
	return g.group
}

// GroupCaches owns one GroupCache per agent group for a run.
// Constructed once by the Runner and handed to every strategy that needs it.
type GroupCaches struct {
	modulus int
	groups  []*GroupCache
}

// NewGroupCaches creates modulus groups each holding at most capacity entries.
// A modulus below 1 is treated as a single group.
func NewGroupCaches(modulus, capacity int) *GroupCaches {
	if modulus < 1 {
		modulus = 1
	}
	gc := &GroupCaches{modulus: modulus, groups: make([]*GroupCache, modulus)}
	for i := range gc.groups {
		gc.groups[i] = &GroupCache{
			group:       i,
			cache:       NewOrderedCache(capacity),
			generations: make(map[string]uint64),
		}
	}
	return gc
}

// GroupOf returns the group index of agentID.
func (gc *GroupCaches) GroupOf(agentID int) int {
	g := agentID % gc.modulus
	if g < 0 {
		g += gc.modulus
	}
	return g
}

// ForAgent returns the L2 cache shared by agentID's group.
func (gc *GroupCaches) ForAgent(agentID int) *GroupCache {
	return gc.groups[gc.GroupOf(agentID)]
}

// Stats sums counters over every group.
func (gc *GroupCaches) Stats() CacheStats {
	var total CacheStats
	for _, g := range gc.groups {
		total.Add(g.Stats())
	}
	return total
}
