package sim

import (
	"fmt"
	"time"

	"github.com/coherence-sim/coherence-sim/sim/trace"
)

// Strategy governs how one agent's reads and writes are served relative to
// the shared store. Each agent owns exactly one Strategy instance.
type Strategy interface {
	// Read returns a snapshot of key (found=false when absent) and the
	// staleness in milliseconds of the value observed.
	Read(key string) (item ContextItem, found bool, stalenessMs float64)
	// Write applies payload to key and reports success.
	Write(key, payload string) bool
}

// Releaser is implemented by strategies holding router resources
// (subscriptions) that must be released when the instance is discarded.
type Releaser interface {
	Release()
}

// CacheReporter is implemented by strategies owning a private cache.
type CacheReporter interface {
	CacheStats() CacheStats
}

// drainMailbox discards every notice pending for agentID and returns the count.
// Notices only signal that a key changed; readers go to the store anyway.
func drainMailbox(router *MessageRouter, agentID int) int64 {
	var n int64
	for {
		if _, ok := router.Poll(agentID); !ok {
			return n
		}
		n++
	}
}

// Strategy names.
const (
	StrategyBroadcast         = "Broadcast"
	StrategyPubSub            = "PubSub"
	StrategyPullOnDemand      = "PullOnDemand"
	StrategyHierarchicalCache = "HierarchicalCache"
	StrategyHybridAdaptive    = "HybridAdaptive"
)

// strategyAliases maps every accepted spelling to its canonical name.
// Short codes are the ones emitted by the config grid generator.
var strategyAliases = map[string]string{
	StrategyBroadcast:         StrategyBroadcast,
	StrategyPubSub:            StrategyPubSub,
	StrategyPullOnDemand:      StrategyPullOnDemand,
	StrategyHierarchicalCache: StrategyHierarchicalCache,
	StrategyHybridAdaptive:    StrategyHybridAdaptive,
	"BC":                      StrategyBroadcast,
	"PS":                      StrategyPubSub,
	"PD":                      StrategyPullOnDemand,
	"HC":                      StrategyHierarchicalCache,
	"HA":                      StrategyHybridAdaptive,
}

// CanonicalStrategy resolves a configured strategy name or short code.
func CanonicalStrategy(name string) (string, bool) {
	canon, ok := strategyAliases[name]
	return canon, ok
}

// IsValidStrategy reports whether name is a recognized strategy name or code.
func IsValidStrategy(name string) bool {
	_, ok := strategyAliases[name]
	return ok
}

// StrategyEnv holds the run-wide collaborators shared by every strategy.
type StrategyEnv struct {
	Store  *ContextStore
	Router *MessageRouter
	Clock  Clock
	Groups *GroupCaches            // L2 caches; required by HierarchicalCache
	Trace  *trace.SimulationTrace // optional; receives HybridAdaptive evaluations
}

// StrategyConfig holds per-strategy tuning resolved from the run config.
type StrategyConfig struct {
	TTL          time.Duration // PullOnDemand cache validity
	L1Capacity   int           // HierarchicalCache private level
	TopicBuckets int           // PubSub topic fan-in
	// PubSubStalenessMs is reported by PubSub reads of present keys to model
	// notification lag not yet reflected locally.
	PubSubStalenessMs float64

	// HybridAdaptive inputs.
	AgentCount       int
	ReadRatio        float64 // configured hint, used until traffic is observed
	AccessSkew       float64
	AdaptiveInterval time.Duration
}

// DefaultStrategyConfig returns the values used by the experiment grid.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		TTL:               60 * time.Second,
		L1Capacity:        100,
		TopicBuckets:      256,
		PubSubStalenessMs: 2.0,
		ReadRatio:         0.5,
		AccessSkew:        0.9,
		AdaptiveInterval:  30 * time.Second,
	}
}

// NewStrategy creates the strategy instance for agentID.
// Panics on an unknown name; callers validate configuration first.
func NewStrategy(name string, agentID int, env StrategyEnv, cfg StrategyConfig) Strategy {
	canon, ok := CanonicalStrategy(name)
	if !ok {
		panic(fmt.Sprintf("unknown strategy %q", name))
	}
	switch canon {
	case StrategyBroadcast:
		return &Broadcast{agentID: agentID, store: env.Store, router: env.Router}
	case StrategyPubSub:
		return newPubSub(agentID, env, cfg)
	case StrategyPullOnDemand:
		return newPullOnDemand(agentID, env, cfg)
	case StrategyHierarchicalCache:
		if env.Groups == nil {
			panic("HierarchicalCache requires group caches")
		}
		return newHierarchicalCache(agentID, env, cfg)
	case StrategyHybridAdaptive:
		return newHybridAdaptive(agentID, env, cfg)
	default:
		panic(fmt.Sprintf("unhandled strategy %q", canon))
	}
}
