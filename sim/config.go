package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coherence-sim/coherence-sim/sim/trace"
	"github.com/coherence-sim/coherence-sim/sim/workload"
)

// Config is the resolved configuration of one experiment run.
// Loaded from YAML via LoadConfig(path); yaml and json keys match so the
// manifest can be joined with the original config by downstream analysis.
type Config struct {
	RunID      string `yaml:"run_id" json:"run_id" validate:"required"`
	Seed       int64  `yaml:"seed" json:"seed"`
	ResultsDir string `yaml:"results_dir" json:"results_dir" validate:"required"`
	TraceLevel string `yaml:"trace_level" json:"trace_level"`

	Agents        AgentsConfig        `yaml:"agents" json:"agents"`
	Context       ContextConfig       `yaml:"context" json:"context"`
	Workload      WorkloadConfig      `yaml:"workload" json:"workload"`
	AccessPattern AccessPatternConfig `yaml:"access_pattern" json:"access_pattern"`
	MCP           MCPConfig           `yaml:"mcp" json:"mcp"`
	Measurement   MeasurementConfig   `yaml:"measurement" json:"measurement"`
}

// AgentsConfig sizes the agent fleet.
type AgentsConfig struct {
	Count    int `yaml:"count" json:"count" validate:"min=1"`
	GroupMod int `yaml:"group_mod" json:"group_mod" validate:"min=1"` // L2 group divisor
}

// ContextConfig describes the key universe and payloads.
type ContextConfig struct {
	Items      int  `yaml:"items" json:"items" validate:"min=1"`
	SizeTokens int  `yaml:"size_tokens" json:"size_tokens" validate:"min=1"` // payload bytes per write
	Preload    bool `yaml:"preload" json:"preload"`                           // write every key once during INIT
}

// WorkloadConfig selects the operation mix.
type WorkloadConfig struct {
	Type      string   `yaml:"type" json:"type" validate:"required"`
	OpsPerSec float64  `yaml:"ops_per_sec" json:"ops_per_sec" validate:"gt=0"`
	ReadRatio *float64 `yaml:"read_ratio" json:"read_ratio" validate:"omitempty,gte=0,lte=1"`
}

// AccessPatternConfig selects the key distribution.
type AccessPatternConfig struct {
	Type            string  `yaml:"type" json:"type" validate:"required,oneof=uniform zipf hotspot"`
	ZipfAlpha       float64 `yaml:"zipf_alpha" json:"zipf_alpha" validate:"gte=0"`
	HotspotFraction float64 `yaml:"hotspot_fraction" json:"hotspot_fraction" validate:"gt=0,lte=1"`
	HotspotShare    float64 `yaml:"hotspot_share" json:"hotspot_share" validate:"gte=0,lte=1"`
}

// MCPConfig selects and tunes the coherence strategy.
type MCPConfig struct {
	Strategy                string  `yaml:"strategy" json:"strategy" validate:"required"`
	NetworkDelayMs          float64 `yaml:"network_delay_ms" json:"network_delay_ms" validate:"gte=0"`
	TTLSeconds              float64 `yaml:"ttl_seconds" json:"ttl_seconds" validate:"gte=0"`
	L1Capacity              int     `yaml:"l1_capacity" json:"l1_capacity" validate:"min=1"`
	L2Capacity              int     `yaml:"l2_capacity" json:"l2_capacity" validate:"min=1"`
	AccessSkew              float64 `yaml:"access_skew" json:"access_skew" validate:"gte=0,lte=1"`
	AdaptiveIntervalSeconds float64 `yaml:"adaptive_interval_seconds" json:"adaptive_interval_seconds" validate:"gt=0"`
	TopicBuckets            int     `yaml:"topic_buckets" json:"topic_buckets" validate:"min=1"`
	PubSubStalenessMs       float64 `yaml:"pubsub_staleness_ms" json:"pubsub_staleness_ms" validate:"gte=0"`
}

// MeasurementConfig sets the phase durations and recording policy.
type MeasurementConfig struct {
	InitSeconds        float64 `yaml:"init_seconds" json:"init_seconds" validate:"gte=0"`
	WarmupSeconds      float64 `yaml:"warmup_seconds" json:"warmup_seconds" validate:"gte=0"`
	MeasureSeconds     float64 `yaml:"measure_seconds" json:"measure_seconds" validate:"gt=0"`
	CooldownSeconds    float64 `yaml:"cooldown_seconds" json:"cooldown_seconds" validate:"gte=0"`
	LogIntervalSeconds float64 `yaml:"log_interval_seconds" json:"log_interval_seconds" validate:"gt=0"`
	ExcludeWarmup      bool    `yaml:"exclude_warmup" json:"exclude_warmup"`
	Dispatch           string  `yaml:"dispatch" json:"dispatch"` // MEASURE agent selection
}

// MEASURE-phase dispatch rules.
const (
	// DispatchSeeded draws the agent from the seeded dispatch RNG (reproducible).
	DispatchSeeded = "seeded"
	// DispatchClock uses clock milliseconds modulo agent count.
	DispatchClock = "clock"
)

var validDispatch = map[string]bool{DispatchSeeded: true, DispatchClock: true}

// DefaultResultsDir returns $RESULTS_DIR, or "results" when unset.
func DefaultResultsDir() string {
	if dir := os.Getenv("RESULTS_DIR"); dir != "" {
		return dir
	}
	return "results"
}

// DefaultConfig returns a Config holding every optional field's default.
// Required fields (run_id, agents.count, workload, access_pattern.type,
// mcp.strategy, measurement.measure_seconds) are left zero.
func DefaultConfig() Config {
	return Config{
		Seed:       42,
		ResultsDir: DefaultResultsDir(),
		TraceLevel: string(trace.TraceLevelDecisions),
		Agents:     AgentsConfig{GroupMod: 5},
		Context:    ContextConfig{Items: 10_000, SizeTokens: 1},
		AccessPattern: AccessPatternConfig{
			ZipfAlpha:       0.99,
			HotspotFraction: 0.05,
			HotspotShare:    0.5,
		},
		MCP: MCPConfig{
			NetworkDelayMs:          5,
			TTLSeconds:              60,
			L1Capacity:              100,
			L2Capacity:              1000,
			AccessSkew:              0.9,
			AdaptiveIntervalSeconds: 30,
			TopicBuckets:            256,
			PubSubStalenessMs:       2,
		},
		Measurement: MeasurementConfig{
			LogIntervalSeconds: 1,
			Dispatch:           DispatchSeeded,
		},
	}
}

// LoadConfig reads and parses a YAML run configuration file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// The result is not validated; call Validate before use.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over DefaultConfig, so absent optional fields keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML path rather than Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				return fmt.Errorf("%s must satisfy %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
			}
			return fmt.Errorf("%s is %s", field, fe.Tag())
		}
		return err
	}

	if !IsValidStrategy(c.MCP.Strategy) {
		return fmt.Errorf("unknown mcp.strategy %q; valid: Broadcast, PubSub, PullOnDemand, HierarchicalCache, HybridAdaptive", c.MCP.Strategy)
	}
	wt, ok := workload.CanonicalType(c.Workload.Type)
	if !ok {
		return fmt.Errorf("unknown workload.type %q; valid: ratio, burst", c.Workload.Type)
	}
	if wt == workload.TypeRatio && c.Workload.ReadRatio == nil {
		return fmt.Errorf("workload.read_ratio is required for ratio workloads")
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, decisions", c.TraceLevel)
	}
	if !validDispatch[c.Measurement.Dispatch] {
		return fmt.Errorf("unknown measurement.dispatch %q; valid: seeded, clock", c.Measurement.Dispatch)
	}
	if strings.ContainsAny(c.RunID, `/\`) {
		return fmt.Errorf("run_id %q must not contain path separators", c.RunID)
	}
	return nil
}

// ReadRatio returns the configured read ratio, or the burst default when unset.
func (c *Config) ReadRatio() float64 {
	if c.Workload.ReadRatio != nil {
		return *c.Workload.ReadRatio
	}
	return workload.DefaultBurstReadRatio
}

// StrategyName returns the canonical strategy name.
func (c *Config) StrategyName() string {
	canon, _ := CanonicalStrategy(c.MCP.Strategy)
	return canon
}

// StrategyConfig derives per-strategy tuning from the run config.
func (c *Config) StrategyConfig() StrategyConfig {
	return StrategyConfig{
		TTL:               seconds(c.MCP.TTLSeconds),
		L1Capacity:        c.MCP.L1Capacity,
		TopicBuckets:      c.MCP.TopicBuckets,
		PubSubStalenessMs: c.MCP.PubSubStalenessMs,
		AgentCount:        c.Agents.Count,
		ReadRatio:         c.ReadRatio(),
		AccessSkew:        c.MCP.AccessSkew,
		AdaptiveInterval:  seconds(c.MCP.AdaptiveIntervalSeconds),
	}
}

// AccessParams derives the access sampler parameters.
func (c *Config) AccessParams() workload.AccessParams {
	return workload.AccessParams{
		Type:            c.AccessPattern.Type,
		Items:           c.Context.Items,
		ZipfAlpha:       c.AccessPattern.ZipfAlpha,
		HotspotFraction: c.AccessPattern.HotspotFraction,
		HotspotShare:    c.AccessPattern.HotspotShare,
	}
}

// TickInterval is the spacing between Workload ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Workload.OpsPerSec)
}

// NetworkDelay is the router propagation delay.
func (c *Config) NetworkDelay() time.Duration {
	return time.Duration(c.MCP.NetworkDelayMs * float64(time.Millisecond))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
