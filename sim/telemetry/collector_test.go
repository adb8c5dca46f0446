package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherence-sim/coherence-sim/sim"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCollector_ObserveOp_CountsByLabels(t *testing.T) {
	// GIVEN a collector on a private registry
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// WHEN two successful reads and one absent read are observed
	ok := sim.OpResult{Kind: sim.OpRead, Start: epoch, End: epoch.Add(time.Millisecond), Success: true, StalenessMs: 3}
	absent := sim.OpResult{Kind: sim.OpRead, Start: epoch, End: epoch, Success: false}
	c.ObserveOp("PullOnDemand", ok)
	c.ObserveOp("PullOnDemand", ok)
	c.ObserveOp("PullOnDemand", absent)

	// THEN counters are split by outcome
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ops.WithLabelValues("PullOnDemand", "read", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("PullOnDemand", "read", "false")))
	// AND only successful reads feed the staleness histogram
	assert.Equal(t, 1, testutil.CollectAndCount(c.staleness))
}

func TestCollector_RunFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	res := &sim.RunResult{Manifest: &sim.RunManifest{Summary: sim.RunSummary{DelegateSwitches: 3}}}
	c.RunFinished("HybridAdaptive", res)
	c.RunFinished("HybridAdaptive", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("HybridAdaptive", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("HybridAdaptive", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.switches.WithLabelValues("HybridAdaptive")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveOp("Broadcast", sim.OpResult{Kind: sim.OpWrite, Start: epoch, End: epoch.Add(5 * time.Millisecond), Success: true})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `coherence_ops_total{op="write",strategy="Broadcast",success="true"} 1`))
}
