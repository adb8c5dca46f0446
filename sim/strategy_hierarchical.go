package sim

// HierarchicalCache serves reads from a private L1, then the group-shared L2,
// then the store. Both levels evict in insertion order once over capacity.
// Writes go to the store, drop the key from the writer's L1 and invalidate it
// in the group's L2. Invalidation also retires other members' L1 copies
// through the group generation, so the next read anywhere in the group
// observes the written version.
type HierarchicalCache struct {
	agentID int
	store   *ContextStore
	clock   Clock
	l1      *OrderedCache
	l2      *GroupCache
	l2Stats CacheStats // lookups this agent made against the shared level
}

func newHierarchicalCache(agentID int, env StrategyEnv, cfg StrategyConfig) *HierarchicalCache {
	return &HierarchicalCache{
		agentID: agentID,
		store:   env.Store,
		clock:   env.Clock,
		l1:      NewOrderedCache(cfg.L1Capacity),
		l2:      env.Groups.ForAgent(agentID),
	}
}

// Read implements Strategy for HierarchicalCache.
func (h *HierarchicalCache) Read(key string) (ContextItem, bool, float64) {
	now := h.clock.Now()
	gen := h.l2.Generation(key)

	current := func(e CacheEntry) bool { return e.Generation == gen }
	if entry, ok := h.l1.GetValid(key, current); ok {
		return entry.Item, true, staleness(now, entry.Item, true)
	}
	if entry, ok := h.l2.Get(key); ok {
		h.l2Stats.Hits++
		entry.CachedAt = now
		entry.Generation = gen
		h.l1.Put(key, entry)
		return entry.Item, true, staleness(now, entry.Item, true)
	}
	h.l2Stats.Misses++

	item, found := h.store.Read(key)
	if !found {
		return ContextItem{}, false, 0
	}
	entry := CacheEntry{Item: item, Found: true, CachedAt: now, Generation: gen}
	h.l1.Put(key, entry)
	h.l2.PutAt(key, entry, gen)
	return item, true, staleness(now, item, true)
}

// Write implements Strategy for HierarchicalCache.
func (h *HierarchicalCache) Write(key, payload string) bool {
	h.store.Write(key, payload)
	h.l1.Remove(key)
	h.l2.Invalidate(key)
	return true
}

// CacheStats implements CacheReporter with the private L1 counters.
func (h *HierarchicalCache) CacheStats() CacheStats {
	return h.l1.Stats()
}

// L2Stats returns the hits and misses this agent observed on its group's L2.
func (h *HierarchicalCache) L2Stats() CacheStats {
	return h.l2Stats
}

// Group returns the index of the group whose L2 this agent shares.
func (h *HierarchicalCache) Group() int {
	return h.l2.Group()
}
