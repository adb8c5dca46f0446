package workload

import (
	"fmt"
	"math/rand"
	"time"
)

// Kind is the kind of operation a Generator asks for.
type Kind string

const (
	Read  Kind = "read"
	Write Kind = "write"
)

// Generator decides, per tick, how many operations to issue and of which kind.
type Generator interface {
	// Next returns the operation count and kind for the tick at elapsed time
	// since the start of the current phase.
	Next(elapsed time.Duration, rng *rand.Rand) (int, Kind)
}

// Workload type names. The short codes come from the experiment grid:
// RH/WH/BA are ratio workloads with different read ratios, BU is burst.
const (
	TypeRatio = "ratio"
	TypeBurst = "burst"
)

var workloadAliases = map[string]string{
	TypeRatio: TypeRatio,
	TypeBurst: TypeBurst,
	"RH":      TypeRatio,
	"WH":      TypeRatio,
	"BA":      TypeRatio,
	"BU":      TypeBurst,
}

// CanonicalType resolves a configured workload type or short code.
func CanonicalType(name string) (string, bool) {
	canon, ok := workloadAliases[name]
	return canon, ok
}

// DefaultBurstReadRatio is the read probability of burst workloads when none is configured.
const DefaultBurstReadRatio = 0.5

// RatioGenerator issues one operation per tick, read with probability readRatio.
type RatioGenerator struct {
	readRatio float64
}

func (g *RatioGenerator) Next(_ time.Duration, rng *rand.Rand) (int, Kind) {
	return 1, pickKind(rng, g.readRatio)
}

// BurstGenerator alternates between 2 and 1 operations per tick on a fixed
// duty cycle: 2 during the first third of each cycle, 1 otherwise. All
// operations of a tick share one kind.
type BurstGenerator struct {
	readRatio float64
	cycle     time.Duration
}

// BurstCycle is the duty cycle length of burst workloads.
const BurstCycle = 30 * time.Second

func (g *BurstGenerator) Next(elapsed time.Duration, rng *rand.Rand) (int, Kind) {
	count := 1
	if elapsed%g.cycle < g.cycle/3 {
		count = 2
	}
	return count, pickKind(rng, g.readRatio)
}

func pickKind(rng *rand.Rand, readRatio float64) Kind {
	if rng.Float64() < readRatio {
		return Read
	}
	return Write
}

// NewGenerator creates a Generator for the workload type.
func NewGenerator(workloadType string, readRatio float64) (Generator, error) {
	canon, ok := CanonicalType(workloadType)
	if !ok {
		return nil, fmt.Errorf("unknown workload type %q; valid: ratio, burst", workloadType)
	}
	if readRatio < 0 || readRatio > 1 {
		return nil, fmt.Errorf("read_ratio must be in [0, 1], got %f", readRatio)
	}
	switch canon {
	case TypeBurst:
		return &BurstGenerator{readRatio: readRatio, cycle: BurstCycle}, nil
	default:
		return &RatioGenerator{readRatio: readRatio}, nil
	}
}
