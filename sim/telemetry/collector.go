// Package telemetry exposes live run metrics to Prometheus.
package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coherence-sim/coherence-sim/sim"
)

// Collector implements sim.OpObserver and aggregates operations across every
// run sharing it. Safe for concurrent use by parallel runners.
type Collector struct {
	ops       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	staleness *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	switches  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coherence_ops_total",
			Help: "Completed operations by strategy, kind and outcome.",
		}, []string{"strategy", "op", "success"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coherence_op_latency_ms",
			Help:    "Operation latency in milliseconds.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		}, []string{"strategy", "op"}),
		staleness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coherence_read_staleness_ms",
			Help:    "Staleness of successful reads in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"strategy"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coherence_runs_total",
			Help: "Finished runs by strategy and status.",
		}, []string{"strategy", "status"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coherence_delegate_switches_total",
			Help: "HybridAdaptive delegate replacements.",
		}, []string{"strategy"}),
	}
	reg.MustRegister(c.ops, c.latency, c.staleness, c.runs, c.switches)
	return c
}

// ObserveOp implements sim.OpObserver.
func (c *Collector) ObserveOp(strategy string, r sim.OpResult) {
	op := string(r.Kind)
	c.ops.WithLabelValues(strategy, op, strconv.FormatBool(r.Success)).Inc()
	c.latency.WithLabelValues(strategy, op).Observe(r.LatencyMs())
	if r.Kind == sim.OpRead && r.Success {
		c.staleness.WithLabelValues(strategy).Observe(r.StalenessMs)
	}
}

// RunFinished counts a completed run. A nil result counts as a failure.
func (c *Collector) RunFinished(strategy string, res *sim.RunResult) {
	if res == nil {
		c.runs.WithLabelValues(strategy, "failed").Inc()
		return
	}
	c.runs.WithLabelValues(strategy, "ok").Inc()
	c.switches.WithLabelValues(strategy).Add(float64(res.Manifest.Summary.DelegateSwitches))
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
