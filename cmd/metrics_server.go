package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/coherence-sim/coherence-sim/sim/telemetry"
)

// StartMetricsServer serves reg on addr at /metrics until the returned
// shutdown func is called. Returns the bound address; listen errors are
// returned immediately.
func StartMetricsServer(addr string, reg prometheus.Gatherer) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("serving metrics on http://%s/metrics", ln.Addr())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Warnf("metrics server shutdown: %v", err)
		}
		<-done
	}, nil
}

// RunBatchWithMetrics is RunBatch with metrics served on addr for the length
// of the batch. An empty addr runs without a server. The server is shut down
// before returning, so callers may exit on the returned error.
func RunBatchWithMetrics(ctx context.Context, paths []string, opts BatchOptions, addr string) (BatchReport, error) {
	if addr == "" {
		return RunBatch(ctx, paths, opts)
	}
	reg := prometheus.NewRegistry()
	opts.Collector = telemetry.NewCollector(reg)
	_, shutdown, err := StartMetricsServer(addr, reg)
	if err != nil {
		return BatchReport{}, fmt.Errorf("could not serve metrics on %s: %w", addr, err)
	}
	defer shutdown()
	return RunBatch(ctx, paths, opts)
}
