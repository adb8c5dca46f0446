package cmd

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherence-sim/coherence-sim/sim"
)

func TestGridConfigs_ExpandsFullGrid(t *testing.T) {
	// GIVEN the 5 strategies x 5 fleet sizes x 3 sizes x 3 patterns x 4 workloads grid
	cfgs := GridConfigs(42)

	// THEN there is one config per cell, each valid
	require.Len(t, cfgs, 900)
	for i := range cfgs {
		require.NoError(t, cfgs[i].Validate(), cfgs[i].RunID)
	}

	// AND ids and nesting follow the grid order
	first := cfgs[0]
	assert.Equal(t, "C001", first.RunID)
	assert.Equal(t, "BC", first.MCP.Strategy)
	assert.Equal(t, 5, first.Agents.Count)
	assert.Equal(t, 100, first.Context.SizeTokens)
	assert.Equal(t, "uniform", first.AccessPattern.Type)
	assert.Equal(t, "RH", first.Workload.Type)
	assert.Equal(t, 0.8, *first.Workload.ReadRatio)

	burst := cfgs[3]
	assert.Equal(t, "BU", burst.Workload.Type)
	assert.Nil(t, burst.Workload.ReadRatio)

	last := cfgs[899]
	assert.Equal(t, "C900", last.RunID)
	assert.Equal(t, "HA", last.MCP.Strategy)
	assert.Equal(t, 100, last.Agents.Count)
	assert.Equal(t, 2000, last.Context.SizeTokens)
	assert.Equal(t, "hotspot", last.AccessPattern.Type)
	assert.Equal(t, int64(42), last.Seed)
}

func TestWriteGrid_RoundTripsThroughLoadConfig(t *testing.T) {
	cfgs := GridConfigs(7)[:8]
	dir := t.TempDir()

	n, err := WriteGrid(dir, cfgs)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	for _, want := range cfgs {
		got, err := sim.LoadConfig(filepath.Join(dir, want.RunID+".yaml"))
		require.NoError(t, err)
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Errorf("%s mismatch (-generated +loaded):\n%s", want.RunID, diff)
		}
	}
}
