package cmd

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherence-sim/coherence-sim/sim/telemetry"
)

func TestStartMetricsServer_ServesAndShutsDown(t *testing.T) {
	// GIVEN a metrics server on an ephemeral port
	reg := prometheus.NewRegistry()
	c := telemetry.NewCollector(reg)
	c.RunFinished("Broadcast", nil)
	addr, shutdown, err := StartMetricsServer("127.0.0.1:0", reg)
	require.NoError(t, err)

	// WHEN /metrics is scraped
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	// THEN the collector's series are exposed
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `coherence_runs_total{status="failed",strategy="Broadcast"} 1`)

	// AND shutdown stops the server goroutine (checked by goleak in TestMain)
	shutdown()
	client.CloseIdleConnections()
}

func TestStartMetricsServer_BadAddress(t *testing.T) {
	_, _, err := StartMetricsServer("256.0.0.1:bad", prometheus.NewRegistry())
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRunBatchWithMetrics_FailedBatch_ReleasesServer(t *testing.T) {
	// GIVEN a batch whose only run fails and a free metrics address
	dir := writeConfigs(t, smallConfig("bad", "Gossip"))
	addr := freeAddr(t)

	// WHEN the batch runs with metrics enabled
	report, err := RunBatchWithMetrics(context.Background(), []string{filepath.Join(dir, "bad.yaml")},
		testBatchOptions(t.TempDir()), addr)

	// THEN the failure is returned
	require.Error(t, err)
	assert.Equal(t, 0, report.Succeeded())

	// AND the metrics server was already shut down, so the address is free again
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err == nil {
		_ = conn.Close()
	}
	assert.Error(t, err, "metrics server still listening after a failed batch")
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestRunBatchWithMetrics_AddressInUse(t *testing.T) {
	// GIVEN an address already held by another listener
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// WHEN a batch asks to serve metrics there
	report, err := RunBatchWithMetrics(context.Background(), nil, testBatchOptions(t.TempDir()), ln.Addr().String())

	// THEN it fails before running anything
	assert.ErrorContains(t, err, "could not serve metrics")
	assert.Empty(t, report.Outcomes)
}
