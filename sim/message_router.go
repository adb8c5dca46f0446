package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MessageRouter simulates asynchronous notification delivery between agents.
//
// There is no transport: delivery is an append to the receiver's Mailbox.
// The propagation cost is charged to the caller of Broadcast/Publish, which
// sleeps on the run Clock for the configured delay before delivering. This is
// what makes push-based strategies pay on writes while pull-based ones do not.
//
// Thread-safety: safe for concurrent use. Each Mailbox is still single-consumer:
// only its owning agent should Poll it.
type MessageRouter struct {
	mu          sync.Mutex
	delay       time.Duration
	clock       Clock
	subscribers map[string]map[int]struct{} // topic -> agent ids
	mailboxes   map[int]*Mailbox
	agents      []int // registration order, for deterministic fan-out

	delivered int64
	published int64
}

// RouterStats summarises router activity for a run.
type RouterStats struct {
	Broadcasts int64 `json:"broadcasts"` // Broadcast + Publish calls
	Delivered  int64 `json:"delivered"`  // notices appended to mailboxes
	Pending    int   `json:"pending"`    // notices not yet polled, across all mailboxes
	Topics     int   `json:"topics"`     // topics with at least one subscriber
}

// NewMessageRouter creates a router charging delay per Broadcast/Publish call.
func NewMessageRouter(delay time.Duration, clock Clock) *MessageRouter {
	return &MessageRouter{
		delay:       delay,
		clock:       clock,
		subscribers: make(map[string]map[int]struct{}),
		mailboxes:   make(map[int]*Mailbox),
	}
}

// Delay returns the configured propagation delay.
func (r *MessageRouter) Delay() time.Duration {
	return r.delay
}

// Register creates the mailbox for agentID. Registering twice is a no-op.
func (r *MessageRouter) Register(agentID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailboxLocked(agentID)
}

// mailboxLocked returns the mailbox for agentID, creating it on first use. Caller holds r.mu.
func (r *MessageRouter) mailboxLocked(agentID int) *Mailbox {
	mb, ok := r.mailboxes[agentID]
	if !ok {
		mb = &Mailbox{}
		r.mailboxes[agentID] = mb
		r.agents = append(r.agents, agentID)
	}
	return mb
}

// Subscribe adds agentID to topic's subscriber set.
func (r *MessageRouter) Subscribe(agentID int, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.subscribers[topic]
	if !ok {
		subs = make(map[int]struct{})
		r.subscribers[topic] = subs
	}
	subs[agentID] = struct{}{}
	r.mailboxLocked(agentID)
}

// Unsubscribe removes agentID from topic's subscriber set.
func (r *MessageRouter) Unsubscribe(agentID int, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.subscribers[topic]
	if !ok {
		return
	}
	delete(subs, agentID)
	if len(subs) == 0 {
		delete(r.subscribers, topic)
	}
}

// Subscribers returns the sorted subscriber ids of topic.
func (r *MessageRouter) Subscribers(topic string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.subscribers[topic]))
	for id := range r.subscribers[topic] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Broadcast delivers n to every registered agent except fromID after the delay.
func (r *MessageRouter) Broadcast(fromID int, n Notice) {
	r.clock.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.published++
	for _, id := range r.agents {
		if id == fromID {
			continue
		}
		r.mailboxes[id].Enqueue(n)
		r.delivered++
	}
	logrus.Tracef("broadcast %s from agent %d", n, fromID)
}

// Publish delivers n to every subscriber of topic after the delay.
func (r *MessageRouter) Publish(topic string, n Notice) {
	r.clock.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.published++
	for id := range r.subscribers[topic] {
		r.mailboxLocked(id).Enqueue(n)
		r.delivered++
	}
	logrus.Tracef("publish %s on %s to %d subscribers", n, topic, len(r.subscribers[topic]))
}

// Poll dequeues the oldest pending notice for agentID without blocking.
func (r *MessageRouter) Poll(agentID int) (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.mailboxes[agentID]
	if !ok {
		return Notice{}, false
	}
	return mb.Dequeue()
}

// Pending returns the number of notices agentID has not yet polled.
func (r *MessageRouter) Pending(agentID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mb, ok := r.mailboxes[agentID]; ok {
		return mb.Len()
	}
	return 0
}

// Stats returns a snapshot of router counters.
func (r *MessageRouter) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := 0
	for _, mb := range r.mailboxes {
		pending += mb.Len()
	}
	return RouterStats{
		Broadcasts: r.published,
		Delivered:  r.delivered,
		Pending:    pending,
		Topics:     len(r.subscribers),
	}
}
