package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// AccessSampler picks the target item id for one operation from a fixed
// universe [0, Universe()).
type AccessSampler interface {
	// Sample returns an item id in [0, Universe()).
	Sample(rng *rand.Rand) int
	Universe() int
}

// AccessParams parameterizes an access pattern.
type AccessParams struct {
	Type            string
	Items           int
	ZipfAlpha       float64
	HotspotFraction float64
	HotspotShare    float64
}

// Access pattern names.
const (
	AccessUniform = "uniform"
	AccessZipf    = "zipf"
	AccessHotspot = "hotspot"
)

var validAccessPatterns = map[string]bool{
	AccessUniform: true, AccessZipf: true, AccessHotspot: true,
}

// IsValidAccessPattern reports whether name is a recognized access pattern.
func IsValidAccessPattern(name string) bool {
	return validAccessPatterns[name]
}

// KeyFor formats the context key of item id.
func KeyFor(id int) string {
	return fmt.Sprintf("doc:%d", id)
}

// UniformSampler picks every id with equal probability.
type UniformSampler struct {
	n int
}

func (s *UniformSampler) Sample(rng *rand.Rand) int {
	return rng.Intn(s.n)
}

func (s *UniformSampler) Universe() int { return s.n }

// ZipfSampler picks rank r (1-based, id = r-1) with probability proportional
// to r^-alpha, by inverse CDF over the precomputed cumulative weights.
type ZipfSampler struct {
	cdf []float64
}

// NewZipfSampler precomputes the normalized CDF for n items.
func NewZipfSampler(n int, alpha float64) *ZipfSampler {
	weights := make([]float64, n)
	total := 0.0
	for r := 1; r <= n; r++ {
		w := 1.0 / math.Pow(float64(r), alpha)
		weights[r-1] = w
		total += w
	}
	cdf := make([]float64, n)
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / total
		cdf[i] = cumulative
	}
	// Ensure last CDF entry is exactly 1.0
	cdf[n-1] = 1.0
	return &ZipfSampler{cdf: cdf}
}

func (s *ZipfSampler) Sample(rng *rand.Rand) int {
	u := rng.Float64()
	idx := sort.SearchFloat64s(s.cdf, u)
	if idx >= len(s.cdf) {
		idx = len(s.cdf) - 1
	}
	return idx
}

func (s *ZipfSampler) Universe() int { return len(s.cdf) }

// Probability returns the probability mass of id.
func (s *ZipfSampler) Probability(id int) float64 {
	if id == 0 {
		return s.cdf[0]
	}
	return s.cdf[id] - s.cdf[id-1]
}

// HotspotSampler routes share of all traffic to the first hotN ids and the
// remainder to the rest, uniformly within each set.
type HotspotSampler struct {
	n     int
	hotN  int
	share float64
}

// NewHotspotSampler builds a sampler whose hot set is max(1, n*fraction) ids.
func NewHotspotSampler(n int, fraction, share float64) *HotspotSampler {
	hotN := int(float64(n) * fraction)
	if hotN < 1 {
		hotN = 1
	}
	if hotN > n {
		hotN = n
	}
	return &HotspotSampler{n: n, hotN: hotN, share: share}
}

func (s *HotspotSampler) Sample(rng *rand.Rand) int {
	hot := rng.Float64() < s.share
	if hot || s.hotN == s.n {
		return rng.Intn(s.hotN)
	}
	return s.hotN + rng.Intn(s.n-s.hotN)
}

func (s *HotspotSampler) Universe() int { return s.n }

// HotSetSize returns the number of hot ids.
func (s *HotspotSampler) HotSetSize() int { return s.hotN }

// NewAccessSampler creates an AccessSampler from an AccessParams.
func NewAccessSampler(params AccessParams) (AccessSampler, error) {
	if params.Items < 1 {
		return nil, fmt.Errorf("access pattern requires at least 1 item, got %d", params.Items)
	}
	switch params.Type {
	case AccessUniform:
		return &UniformSampler{n: params.Items}, nil
	case AccessZipf:
		if params.ZipfAlpha < 0 || math.IsNaN(params.ZipfAlpha) || math.IsInf(params.ZipfAlpha, 0) {
			return nil, fmt.Errorf("zipf_alpha must be a finite non-negative number, got %f", params.ZipfAlpha)
		}
		return NewZipfSampler(params.Items, params.ZipfAlpha), nil
	case AccessHotspot:
		if params.HotspotFraction <= 0 || params.HotspotFraction > 1 {
			return nil, fmt.Errorf("hotspot_fraction must be in (0, 1], got %f", params.HotspotFraction)
		}
		if params.HotspotShare < 0 || params.HotspotShare > 1 {
			return nil, fmt.Errorf("hotspot_share must be in [0, 1], got %f", params.HotspotShare)
		}
		return NewHotspotSampler(params.Items, params.HotspotFraction, params.HotspotShare), nil
	default:
		return nil, fmt.Errorf("unknown access pattern %q; valid: uniform, zipf, hotspot", params.Type)
	}
}
