package sim

import "time"

// PullOnDemand keeps a private TTL cache per agent. A cached fetch is served
// while its age since fetch is under the TTL; staleness is still measured from
// the item's authored time. Writes pass straight to the store and leave the
// agent's own cache untouched.
type PullOnDemand struct {
	agentID int
	store   *ContextStore
	clock   Clock
	ttl     time.Duration
	cache   *OrderedCache
}

func newPullOnDemand(agentID int, env StrategyEnv, cfg StrategyConfig) *PullOnDemand {
	return &PullOnDemand{
		agentID: agentID,
		store:   env.Store,
		clock:   env.Clock,
		ttl:     cfg.TTL,
		cache:   NewOrderedCache(0),
	}
}

// Read implements Strategy for PullOnDemand.
func (p *PullOnDemand) Read(key string) (ContextItem, bool, float64) {
	now := p.clock.Now()
	fresh := func(e CacheEntry) bool { return now.Sub(e.CachedAt) < p.ttl }
	if entry, ok := p.cache.GetValid(key, fresh); ok {
		return entry.Item, entry.Found, staleness(now, entry.Item, entry.Found)
	}
	item, found := p.store.Read(key)
	p.cache.Put(key, CacheEntry{Item: item, Found: found, CachedAt: now})
	return item, found, staleness(now, item, found)
}

// Write implements Strategy for PullOnDemand.
func (p *PullOnDemand) Write(key, payload string) bool {
	p.store.Write(key, payload)
	return true
}

// CacheStats implements CacheReporter.
func (p *PullOnDemand) CacheStats() CacheStats {
	return p.cache.Stats()
}

// staleness returns the age of item in milliseconds, or 0 for an absent item.
func staleness(now time.Time, item ContextItem, found bool) float64 {
	if !found {
		return 0
	}
	return millisSince(now, item.UpdatedAt)
}
