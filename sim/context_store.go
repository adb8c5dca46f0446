package sim

import (
	"sync"
	"time"
)

// ContextItem is the latest known value for one logical key.
// Version starts at 1 and increases by exactly 1 on every write to the key.
type ContextItem struct {
	ID        string
	Version   int64
	Payload   string
	UpdatedAt time.Time
}

// ContextStore is the authoritative key → ContextItem mapping for one run.
// Entries are never removed. Reads hand out copies, so no caller can
// mutate the authoritative item.
//
// Thread-safety: safe for concurrent use. Version assignment happens under
// the write lock, so concurrent writers to one key can neither skip nor
// duplicate a version.
type ContextStore struct {
	mu     sync.RWMutex
	items  map[string]*ContextItem
	clock  Clock
	writes int64
}

// NewContextStore creates an empty store stamping writes with clock.
func NewContextStore(clock Clock) *ContextStore {
	return &ContextStore{
		items: make(map[string]*ContextItem),
		clock: clock,
	}
}

// Read returns a snapshot of the item for key, or false if the key has never been written.
func (s *ContextStore) Read(key string) (ContextItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key]
	if !ok {
		return ContextItem{}, false
	}
	return *item, true
}

// Write replaces the payload for key and returns a snapshot of the new item.
// Always succeeds.
func (s *ContextStore) Write(key, payload string) ContextItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := int64(1)
	if cur, ok := s.items[key]; ok {
		version = cur.Version + 1
	}
	item := &ContextItem{
		ID:        key,
		Version:   version,
		Payload:   payload,
		UpdatedAt: s.clock.Now(),
	}
	s.items[key] = item
	s.writes++
	return *item
}

// Len returns the number of distinct keys ever written.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Writes returns the total number of writes applied.
func (s *ContextStore) Writes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
