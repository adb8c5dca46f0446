package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherence-sim/coherence-sim/sim"
	"github.com/coherence-sim/coherence-sim/sim/telemetry"
)

type constSampler struct{}

func (constSampler) Sample() (float64, float64, error) { return 1, 2, nil }

func testBatchOptions(resultsDir string) BatchOptions {
	return BatchOptions{
		Workers:    2,
		ResultsDir: resultsDir,
		NewClock: func() sim.Clock {
			return sim.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		},
		NewSampler: func() sim.ResourceSampler { return constSampler{} },
	}
}

// smallConfig is a fast run: 3 agents, 2s measure window, no idle phases.
func smallConfig(runID, strategy string) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.RunID = runID
	cfg.ResultsDir = "unused"
	cfg.Agents = sim.AgentsConfig{Count: 3, GroupMod: 2}
	cfg.Context.Items = 50
	cfg.Workload = sim.WorkloadConfig{Type: "ratio", OpsPerSec: 10, ReadRatio: ratio(0.5)}
	cfg.AccessPattern.Type = "zipf"
	cfg.MCP.Strategy = strategy
	cfg.Measurement = sim.MeasurementConfig{MeasureSeconds: 2, LogIntervalSeconds: 1, Dispatch: sim.DispatchSeeded}
	return cfg
}

func writeConfigs(t *testing.T, cfgs ...sim.Config) string {
	t.Helper()
	dir := t.TempDir()
	_, err := WriteGrid(dir, cfgs)
	require.NoError(t, err)
	return dir
}

func TestResolveConfigPaths(t *testing.T) {
	dir := writeConfigs(t, smallConfig("b", "PD"), smallConfig("a", "PD"))

	paths, err := ResolveConfigPaths("", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}, paths)

	paths, err = ResolveConfigPaths("x.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.yaml"}, paths)

	_, err = ResolveConfigPaths("", "")
	assert.Error(t, err)
	_, err = ResolveConfigPaths("x.yaml", "*.yaml")
	assert.Error(t, err)
	_, err = ResolveConfigPaths("", filepath.Join(dir, "*.yml"))
	assert.Error(t, err)
}

func TestRunBatch_AllSucceed_WritesOutputs(t *testing.T) {
	// GIVEN one config per strategy
	var cfgs []sim.Config
	for _, s := range []string{"BC", "PS", "PD", "HC", "HA"} {
		cfgs = append(cfgs, smallConfig("run-"+s, s))
	}
	dir := writeConfigs(t, cfgs...)
	paths, err := ResolveConfigPaths("", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	results := t.TempDir()

	// WHEN the batch runs with 2 workers
	report, err := RunBatch(context.Background(), paths, testBatchOptions(results))

	// THEN every run succeeded and wrote its outputs under the overridden results dir
	require.NoError(t, err)
	assert.Equal(t, 5, report.Succeeded())
	for _, o := range report.Outcomes {
		require.NoError(t, o.Err)
		require.NotNil(t, o.Result)
		assert.Equal(t, sim.RunOutputPaths(results, o.RunID), o.Result.Paths)
		for _, p := range []string{o.Result.Paths.Ops, o.Result.Paths.Resources, o.Result.Paths.Manifest} {
			_, statErr := os.Stat(p)
			assert.NoError(t, statErr, p)
		}
	}
}

func TestRunBatch_FailingRunsAreIsolated(t *testing.T) {
	// GIVEN two valid configs, one with an unknown strategy and one unparsable file
	dir := writeConfigs(t, smallConfig("ok1", "PD"), smallConfig("ok2", "HC"), smallConfig("bad", "Gossip"))
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("run_id: broken\nnot_a_field: 1\n"), 0o644))
	paths, err := ResolveConfigPaths("", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	opts := testBatchOptions(t.TempDir())
	opts.Collector = telemetry.NewCollector(reg)

	// WHEN the batch runs
	report, err := RunBatch(context.Background(), paths, opts)

	// THEN the batch reports failure but the valid runs completed
	require.Error(t, err)
	assert.Equal(t, 2, report.Succeeded())
	byID := map[string]RunOutcome{}
	for _, o := range report.Outcomes {
		byID[filepath.Base(o.Path)] = o
	}
	assert.NoError(t, byID["ok1.yaml"].Err)
	assert.NoError(t, byID["ok2.yaml"].Err)
	assert.Error(t, byID["bad.yaml"].Err)
	assert.Error(t, byID["broken.yaml"].Err)

	// AND the collector counted outcomes per run
	total, err := promtestutil.GatherAndCount(reg, "coherence_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, total, "ok for PullOnDemand and HierarchicalCache, failed for unknown")
	opsSeries, err := promtestutil.GatherAndCount(reg, "coherence_ops_total")
	require.NoError(t, err)
	assert.Positive(t, opsSeries)
}

func TestRunBatch_CancelledContext_FailsAllRuns(t *testing.T) {
	dir := writeConfigs(t, smallConfig("c1", "PD"), smallConfig("c2", "PD"))
	paths, err := ResolveConfigPaths("", filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := RunBatch(ctx, paths, testBatchOptions(t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, 0, report.Succeeded())
	for _, o := range report.Outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
}
