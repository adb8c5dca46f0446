package sim

import (
	"hash/fnv"
	"math/rand"
	"sort"
)

// SimulationKey is the master seed of a run. Equal keys, equal configs and a
// ManualClock give byte-identical operation logs.
type SimulationKey int64

// NewSimulationKey wraps a configured seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Random streams drawn by a run. Each stream is independent of the others,
// so adding draws to one (say a different dispatch rule) leaves the key
// sequence of the access stream unchanged.
const (
	SubsystemAccess   = "access"   // key ids; seeded with the master seed itself
	SubsystemWorkload = "workload" // read/write choice per tick
	SubsystemDispatch = "dispatch" // MEASURE agent selection
)

// PartitionedRNG hands out one *rand.Rand per named stream, created lazily
// and cached. Streams other than access are seeded with
// master XOR fnv1a64(name).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates the stream set for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream called name, creating it on first use.
// Repeated calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	rng, ok := p.streams[name]
	if !ok {
		rng = rand.New(rand.NewSource(p.seedFor(name)))
		p.streams[name] = rng
	}
	return rng
}

// Subsystems lists the streams created so far, sorted.
func (p *PartitionedRNG) Subsystems() []string {
	names := make([]string, 0, len(p.streams))
	for name := range p.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key returns the master seed.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemAccess {
		return int64(p.key)
	}
	return int64(p.key) ^ fnv1a64(name)
}

// fnv1a64 hashes s with 64-bit FNV-1a. Also used to bucket keys into topics.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
