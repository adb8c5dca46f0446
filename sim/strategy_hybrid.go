package sim

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coherence-sim/coherence-sim/sim/trace"
)

// Selection rules, in evaluation order.
const (
	RuleWriteHeavy     = "write-heavy"      // read_ratio <= 0.3
	RuleSmallReadHeavy = "small-read-heavy" // read_ratio > 0.7, agents <= 25
	RuleSkewedReads    = "skewed-reads"     // read_ratio > 0.7, skew > 0.8
	RuleLargeFleet     = "large-fleet"      // agents > 50
	RuleDefault        = "default"
)

// SelectDelegate applies the HybridAdaptive selection policy and returns the
// chosen strategy name and the rule that decided it.
func SelectDelegate(readRatio float64, agentCount int, accessSkew float64) (string, string) {
	switch {
	case readRatio <= 0.3:
		return StrategyPubSub, RuleWriteHeavy
	case readRatio > 0.7 && agentCount <= 25:
		return StrategyBroadcast, RuleSmallReadHeavy
	case readRatio > 0.7 && accessSkew > 0.8:
		return StrategyHierarchicalCache, RuleSkewedReads
	case agentCount > 50:
		return StrategyPubSub, RuleLargeFleet
	default:
		return StrategyPullOnDemand, RuleDefault
	}
}

// HybridAdaptive owns one delegate strategy and re-evaluates the choice at
// most once per AdaptiveInterval. It starts on Broadcast.
//
// Evaluation uses the read ratio this agent observed since the previous
// evaluation, falling back to the configured hint when it saw no traffic.
// A new delegate is constructed only when the selection changes; the
// discarded instance releases its router subscriptions and its caches are lost.
// Members of one L2 group may therefore run different delegates.
type HybridAdaptive struct {
	agentID int
	env     StrategyEnv
	cfg     StrategyConfig

	current     Strategy
	currentName string
	lastEval    time.Time

	reads, writes int64 // since lastEval
	switches      int
	retired       CacheStats // cache counters of discarded delegates
}

func newHybridAdaptive(agentID int, env StrategyEnv, cfg StrategyConfig) *HybridAdaptive {
	h := &HybridAdaptive{
		agentID:     agentID,
		env:         env,
		cfg:         cfg,
		currentName: StrategyBroadcast,
		lastEval:    env.Clock.Now(),
	}
	h.current = NewStrategy(StrategyBroadcast, agentID, env, cfg)
	return h
}

// Read implements Strategy for HybridAdaptive.
func (h *HybridAdaptive) Read(key string) (ContextItem, bool, float64) {
	h.maybeSwitch()
	h.reads++
	return h.current.Read(key)
}

// Write implements Strategy for HybridAdaptive. Agents pick delegates
// independently, so a group peer may be running HierarchicalCache; every
// write invalidates the group L2 whatever the local delegate.
func (h *HybridAdaptive) Write(key, payload string) bool {
	h.maybeSwitch()
	h.writes++
	ok := h.current.Write(key, payload)
	if h.env.Groups != nil && h.currentName != StrategyHierarchicalCache {
		h.env.Groups.ForAgent(h.agentID).Invalidate(key)
	}
	return ok
}

// Current returns the name of the active delegate.
func (h *HybridAdaptive) Current() string {
	return h.currentName
}

// Switches returns how many times the delegate has been replaced.
func (h *HybridAdaptive) Switches() int {
	return h.switches
}

// CacheStats implements CacheReporter across current and discarded delegates.
func (h *HybridAdaptive) CacheStats() CacheStats {
	total := h.retired
	if cr, ok := h.current.(CacheReporter); ok {
		total.Add(cr.CacheStats())
	}
	return total
}

// Release implements Releaser by releasing the active delegate.
func (h *HybridAdaptive) Release() {
	if r, ok := h.current.(Releaser); ok {
		r.Release()
	}
}

func (h *HybridAdaptive) maybeSwitch() {
	now := h.env.Clock.Now()
	if now.Sub(h.lastEval) <= h.cfg.AdaptiveInterval {
		return
	}

	ratio, observed := h.cfg.ReadRatio, false
	if total := h.reads + h.writes; total > 0 {
		ratio, observed = float64(h.reads)/float64(total), true
	}
	name, rule := SelectDelegate(ratio, h.cfg.AgentCount, h.cfg.AccessSkew)
	switched := name != h.currentName

	h.env.Trace.RecordEvaluation(trace.EvaluationRecord{
		AgentID:    h.agentID,
		At:         now,
		From:       h.currentName,
		To:         name,
		Switched:   switched,
		Rule:       rule,
		ReadRatio:  ratio,
		Observed:   observed,
		AgentCount: h.cfg.AgentCount,
		AccessSkew: h.cfg.AccessSkew,
	})

	if switched {
		logrus.Infof("agent %d: switching delegate %s -> %s (rule=%s, read_ratio=%.2f)",
			h.agentID, h.currentName, name, rule, ratio)
		h.Release()
		if cr, ok := h.current.(CacheReporter); ok {
			h.retired.Add(cr.CacheStats())
		}
		h.current = NewStrategy(name, h.agentID, h.env, h.cfg)
		h.currentName = name
		h.switches++
	}
	h.lastEval = now
	h.reads, h.writes = 0, 0
}
