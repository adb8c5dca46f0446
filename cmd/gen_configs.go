package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coherence-sim/coherence-sim/sim"
)

// Experiment grid axes.
var (
	gridStrategies = []string{"BC", "PS", "PD", "HC", "HA"}
	gridAgents     = []int{5, 10, 25, 50, 100}
	gridSizes      = []int{100, 500, 2000}
	gridPatterns   = []sim.AccessPatternConfig{
		{Type: "uniform", ZipfAlpha: 0.99, HotspotFraction: 0.05, HotspotShare: 0.5},
		{Type: "zipf", ZipfAlpha: 0.99, HotspotFraction: 0.05, HotspotShare: 0.5},
		{Type: "hotspot", ZipfAlpha: 0.99, HotspotFraction: 0.05, HotspotShare: 0.5},
	}
)

type gridWorkload struct {
	code      string
	opsPerSec float64
	readRatio *float64 // nil for burst
}

func ratio(r float64) *float64 { return &r }

var gridWorkloads = []gridWorkload{
	{"RH", 10, ratio(0.8)},
	{"WH", 8, ratio(0.3)},
	{"BA", 10, ratio(0.5)},
	{"BU", 10, nil},
}

// GridConfigs expands strategy x agents x size x pattern x workload into run
// configs with ids C001, C002, ... in that nesting order.
func GridConfigs(seed int64) []sim.Config {
	var out []sim.Config
	i := 0
	for _, s := range gridStrategies {
		for _, a := range gridAgents {
			for _, size := range gridSizes {
				for _, pat := range gridPatterns {
					for _, wl := range gridWorkloads {
						i++
						cfg := sim.DefaultConfig()
						cfg.Seed = seed
						cfg.ResultsDir = "results"
						cfg.RunID = fmt.Sprintf("C%03d", i)
						cfg.Workload = sim.WorkloadConfig{Type: wl.code, OpsPerSec: wl.opsPerSec, ReadRatio: wl.readRatio}
						cfg.AccessPattern = pat
						cfg.Agents = sim.AgentsConfig{Count: a, GroupMod: 5}
						cfg.Context.SizeTokens = size
						cfg.MCP.Strategy = s
						cfg.Measurement = sim.MeasurementConfig{
							InitSeconds:        5,
							WarmupSeconds:      30,
							MeasureSeconds:     300,
							CooldownSeconds:    10,
							LogIntervalSeconds: 1,
							Dispatch:           sim.DispatchSeeded,
						}
						out = append(out, cfg)
					}
				}
			}
		}
	}
	return out
}

// WriteGrid writes each config as <out>/<run_id>.yaml and returns the count.
func WriteGrid(out string, cfgs []sim.Config) (int, error) {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", out, err)
	}
	for i := range cfgs {
		data, err := yaml.Marshal(&cfgs[i])
		if err != nil {
			return i, fmt.Errorf("encoding %s: %w", cfgs[i].RunID, err)
		}
		path := filepath.Join(out, cfgs[i].RunID+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return i, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return len(cfgs), nil
}
