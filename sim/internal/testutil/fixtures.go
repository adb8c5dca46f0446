// Package testutil provides shared test infrastructure for the coherence
// simulator: run config fixtures and readers for the persisted run outputs.
// It does not import sim, so sim's own tests can use it.
package testutil

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// BaseConfig returns a small, fast run configuration as a nested map:
// 4 agents, uniform access over 100 keys, 1s warmup and 5s measure windows.
// Tests mutate it with Set before marshaling.
func BaseConfig(runID, resultsDir string) map[string]any {
	return map[string]any{
		"run_id":      runID,
		"seed":        42,
		"results_dir": resultsDir,
		"agents":      map[string]any{"count": 4, "group_mod": 2},
		"context":     map[string]any{"items": 100, "size_tokens": 8},
		"workload":    map[string]any{"type": "ratio", "ops_per_sec": 20, "read_ratio": 0.8},
		"access_pattern": map[string]any{
			"type": "uniform",
		},
		"mcp": map[string]any{
			"strategy":         "PullOnDemand",
			"network_delay_ms": 5,
			"ttl_seconds":      60,
			"l1_capacity":      10,
			"l2_capacity":      50,
		},
		"measurement": map[string]any{
			"init_seconds":         1,
			"warmup_seconds":       1,
			"measure_seconds":      5,
			"cooldown_seconds":     1,
			"log_interval_seconds": 1,
		},
	}
}

// Set assigns value at a dotted path (e.g. "mcp.strategy"), creating
// intermediate maps as needed.
func Set(cfg map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	m := cfg
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// MarshalConfig renders cfg as YAML.
func MarshalConfig(t *testing.T, cfg map[string]any) []byte {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	return data
}

// WriteConfig writes cfg as <dir>/<name>.yaml and returns the path.
func WriteConfig(t *testing.T, dir, name string, cfg map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, MarshalConfig(t, cfg), 0o644); err != nil {
		t.Fatalf("Failed to write config %s: %v", path, err)
	}
	return path
}

// ReadParquet loads every row of a parquet file into T.
func ReadParquet[T any](t *testing.T, path string) []T {
	t.Helper()
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		t.Fatalf("Failed to read parquet %s: %v", path, err)
	}
	return rows
}

// ReadCSV loads every record of a CSV file, header included.
func ReadCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV %s: %v", path, err)
	}
	return records
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
