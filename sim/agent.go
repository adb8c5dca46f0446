package sim

import (
	"time"

	"github.com/sirupsen/logrus"
)

// OpKind is the kind of a simulated operation.
type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
)

// OpResult is the record of one completed operation. Never mutated after
// it is handed to an OpSink, apart from the phase label stamped on record.
type OpResult struct {
	OpID        int64 // per-agent sequence, starting at 1
	AgentID     int
	Phase       Phase
	Kind        OpKind
	Key         string
	Start       time.Time
	End         time.Time
	Success     bool
	StalenessMs float64
	Conflict    bool
	VersionSeen int64 // version returned by a read; 0 for writes and absent reads
}

// LatencyMs returns End - Start in milliseconds.
func (r OpResult) LatencyMs() float64 {
	return millisSince(r.End, r.Start)
}

// OpSink receives completed operations.
type OpSink interface {
	RecordOp(r OpResult)
}

// Agent issues one operation at a time against its Strategy and reports
// each completed operation to the sink.
type Agent struct {
	ID       int
	Strategy Strategy

	clock    Clock
	sink     OpSink
	nextOpID int64
}

// NewAgent creates an agent delegating to strategy.
func NewAgent(id int, strategy Strategy, clock Clock, sink OpSink) *Agent {
	return &Agent{ID: id, Strategy: strategy, clock: clock, sink: sink}
}

// Step performs one operation and records its result. A read of an absent
// key completes normally with Success=false.
func (a *Agent) Step(kind OpKind, key, payload string) OpResult {
	a.nextOpID++
	res := OpResult{OpID: a.nextOpID, AgentID: a.ID, Kind: kind, Key: key}

	res.Start = a.clock.Now()
	switch kind {
	case OpRead:
		item, found, stale := a.Strategy.Read(key)
		res.End = a.clock.Now()
		res.Success = found
		res.StalenessMs = stale
		if found {
			res.VersionSeen = item.Version
		}
	case OpWrite:
		res.Success = a.Strategy.Write(key, payload)
		res.End = a.clock.Now()
	default:
		panic("unknown op kind " + string(kind))
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("agent %d op %d %s %s success=%v version=%d latency=%.3fms",
			a.ID, res.OpID, kind, key, res.Success, res.VersionSeen, res.LatencyMs())
	}
	a.sink.RecordOp(res)
	return res
}
