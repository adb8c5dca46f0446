package sim

import (
	"fmt"
	"sort"
)

// PubSub writes through to the store and publishes the write on a topic
// derived from the key. Topics are hash buckets of the key space, so one
// topic groups many keys.
//
// An agent subscribes to a key's topic the first time it reads that key.
// Reads drain and discard the agent's mailbox, then read the store directly,
// reporting a fixed staleness that models notification lag. Reads never
// block waiting for messages.
type PubSub struct {
	agentID    int
	store      *ContextStore
	router     *MessageRouter
	buckets    int
	staleness  float64
	subscribed map[string]struct{}
	drained    int64
}

func newPubSub(agentID int, env StrategyEnv, cfg StrategyConfig) *PubSub {
	buckets := cfg.TopicBuckets
	if buckets < 1 {
		buckets = 1
	}
	return &PubSub{
		agentID:    agentID,
		store:      env.Store,
		router:     env.Router,
		buckets:    buckets,
		staleness:  cfg.PubSubStalenessMs,
		subscribed: make(map[string]struct{}),
	}
}

// TopicFor maps key to one of buckets topics. Deterministic across runs.
func TopicFor(key string, buckets int) string {
	h := uint64(fnv1a64(key))
	return fmt.Sprintf("t%d", h%uint64(buckets))
}

// Read implements Strategy for PubSub.
func (p *PubSub) Read(key string) (ContextItem, bool, float64) {
	topic := TopicFor(key, p.buckets)
	if _, ok := p.subscribed[topic]; !ok {
		p.router.Subscribe(p.agentID, topic)
		p.subscribed[topic] = struct{}{}
	}
	p.drained += drainMailbox(p.router, p.agentID)

	item, ok := p.store.Read(key)
	if !ok {
		return ContextItem{}, false, 0
	}
	return item, true, p.staleness
}

// Write implements Strategy for PubSub.
func (p *PubSub) Write(key, payload string) bool {
	item := p.store.Write(key, payload)
	p.router.Publish(TopicFor(key, p.buckets), Notice{Type: NoticeUpdate, Key: key, Version: item.Version})
	return true
}

// Release implements Releaser: drops every topic subscription held by this instance.
func (p *PubSub) Release() {
	topics := make([]string, 0, len(p.subscribed))
	for t := range p.subscribed {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		p.router.Unsubscribe(p.agentID, t)
	}
	p.subscribed = make(map[string]struct{})
}

// Drained returns the number of notices discarded by reads.
func (p *PubSub) Drained() int64 {
	return p.drained
}
