package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(key string, version int64) CacheEntry {
	return CacheEntry{Item: ContextItem{ID: key, Version: version}, Found: true, CachedAt: testEpoch}
}

func TestOrderedCache_EvictsInInsertionOrder(t *testing.T) {
	// GIVEN a cache of capacity 3 holding a, b, c
	c := NewOrderedCache(3)
	c.Put("a", entryFor("a", 1))
	c.Put("b", entryFor("b", 1))
	c.Put("c", entryFor("c", 1))

	// WHEN a is read (no recency effect) and d inserted
	_, ok := c.Get("a")
	require.True(t, ok)
	evicted := c.Put("d", entryFor("d", 1))

	// THEN the earliest inserted key a is evicted, not the least recently used
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, []string{"b", "c", "d"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOrderedCache_OverwriteKeepsPosition(t *testing.T) {
	c := NewOrderedCache(2)
	c.Put("a", entryFor("a", 1))
	c.Put("b", entryFor("b", 1))

	// WHEN a is overwritten
	assert.Nil(t, c.Put("a", entryFor("a", 2)))

	// THEN its value changes but it is still the next eviction candidate
	got, _ := c.Get("a")
	assert.Equal(t, int64(2), got.Item.Version)
	assert.Equal(t, []string{"a"}, c.Put("c", entryFor("c", 1)))
}

func TestOrderedCache_Unbounded(t *testing.T) {
	c := NewOrderedCache(0)
	for i := 0; i < 1000; i++ {
		c.Put(fmt.Sprintf("doc:%d", i), entryFor("x", 1))
	}
	assert.Equal(t, 1000, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestOrderedCache_HitMissCounters(t *testing.T) {
	c := NewOrderedCache(2)
	c.Get("missing")
	c.Put("k", entryFor("k", 1))
	c.Get("k")
	c.Get("k")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate(), 1e-9)
	assert.Equal(t, 0.0, CacheStats{}.HitRate())
}

func TestOrderedCache_Remove(t *testing.T) {
	c := NewOrderedCache(2)
	c.Put("k", entryFor("k", 1))
	assert.True(t, c.Remove("k"))
	assert.False(t, c.Remove("k"))
	assert.Equal(t, 0, c.Len())
}

func TestOrderedCache_GetValid_RejectedEntryIsMissAndRemoved(t *testing.T) {
	// GIVEN a cached entry
	c := NewOrderedCache(4)
	c.Put("k", entryFor("k", 1))
	reject := func(CacheEntry) bool { return false }
	accept := func(CacheEntry) bool { return true }

	// WHEN a lookup rejects it
	_, ok := c.GetValid("k", reject)

	// THEN it counts as a miss and is gone
	assert.False(t, ok)
	assert.Equal(t, CacheStats{Misses: 1}, c.Stats())
	assert.Equal(t, 0, c.Len())

	// AND an accepted entry counts as a hit
	c.Put("k", entryFor("k", 2))
	got, ok := c.GetValid("k", accept)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Item.Version)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.Stats())
}

func TestGroupCaches_GroupAssignment(t *testing.T) {
	gc := NewGroupCaches(5, 10)
	// THEN agents 0,5,10 share one L2 and agent 1 another
	assert.Same(t, gc.ForAgent(0), gc.ForAgent(5))
	assert.Same(t, gc.ForAgent(0), gc.ForAgent(10))
	assert.NotSame(t, gc.ForAgent(0), gc.ForAgent(1))
	assert.Equal(t, 3, gc.ForAgent(13).Group())
}

func TestGroupCache_InvalidateBumpsGeneration(t *testing.T) {
	g := NewGroupCaches(1, 10).ForAgent(0)
	gen := g.Generation("k")
	require.True(t, g.PutAt("k", entryFor("k", 1), gen))

	g.Invalidate("k")

	_, ok := g.Get("k")
	assert.False(t, ok)
	assert.Equal(t, gen+1, g.Generation("k"))
	// a fetch that started before the invalidation cannot repopulate
	assert.False(t, g.PutAt("k", entryFor("k", 1), gen))
	assert.Equal(t, 0, g.Len())
}

func TestGroupCaches_StatsSumGroups(t *testing.T) {
	gc := NewGroupCaches(2, 10)
	gc.ForAgent(0).Get("x")
	gc.ForAgent(1).PutAt("y", entryFor("y", 1), 0)
	gc.ForAgent(1).Get("y")

	s := gc.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
}
