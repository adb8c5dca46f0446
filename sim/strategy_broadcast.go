package sim

// Broadcast writes through to the store and announces every write to all
// other agents, paying the router delay on the writer. Reads drain the
// agent's mailbox and then go to the store, so they are never stale.
type Broadcast struct {
	agentID int
	store   *ContextStore
	router  *MessageRouter
	drained int64
}

// Read implements Strategy for Broadcast.
func (b *Broadcast) Read(key string) (ContextItem, bool, float64) {
	b.drained += drainMailbox(b.router, b.agentID)
	item, ok := b.store.Read(key)
	return item, ok, 0
}

// Write implements Strategy for Broadcast.
func (b *Broadcast) Write(key, payload string) bool {
	item := b.store.Write(key, payload)
	b.router.Broadcast(b.agentID, Notice{Type: NoticeUpdate, Key: key, Version: item.Version})
	return true
}

// Drained returns the number of notices discarded by reads.
func (b *Broadcast) Drained() int64 {
	return b.drained
}
