// Captures per-operation records and periodic resource samples for one run,
// and persists them at finalize.

package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSample is one host utilisation reading.
type ResourceSample struct {
	Timestamp  time.Time
	CPUPercent float64
	MemPercent float64
}

// ResourceSampler reads host CPU and memory utilisation in percent.
type ResourceSampler interface {
	Sample() (cpuPercent, memPercent float64, err error)
}

// HostSampler samples the local host through gopsutil.
type HostSampler struct{}

func (HostSampler) Sample() (float64, float64, error) {
	pcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu percent: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, fmt.Errorf("virtual memory: %w", err)
	}
	cpuPct := 0.0
	if len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	return cpuPct, vm.UsedPercent, nil
}

// OpObserver is notified of every completed operation, recorded or not.
type OpObserver interface {
	ObserveOp(strategy string, r OpResult)
}

// OpRow is the on-disk row of the operation log.
type OpRow struct {
	OpID        int64   `parquet:"op_id"`
	AgentID     int64   `parquet:"agent_id"`
	Phase       string  `parquet:"phase"`
	Op          string  `parquet:"op"`
	Key         string  `parquet:"key"`
	Start       float64 `parquet:"start"` // unix seconds
	End         float64 `parquet:"end"`   // unix seconds
	LatencyMs   float64 `parquet:"latency_ms"`
	Success     bool    `parquet:"success"`
	StalenessMs float64 `parquet:"staleness_ms"`
	Conflict    bool    `parquet:"conflict"`
	VersionSeen int64   `parquet:"version_seen"`
}

// NewOpRow converts an OpResult to its persisted form.
func NewOpRow(r OpResult) OpRow {
	return OpRow{
		OpID:        r.OpID,
		AgentID:     int64(r.AgentID),
		Phase:       r.Phase.String(),
		Op:          string(r.Kind),
		Key:         r.Key,
		Start:       unixSeconds(r.Start),
		End:         unixSeconds(r.End),
		LatencyMs:   r.LatencyMs(),
		Success:     r.Success,
		StalenessMs: r.StalenessMs,
		Conflict:    r.Conflict,
		VersionSeen: r.VersionSeen,
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// RunSummary aggregates the MEASURE-phase operations of a run.
type RunSummary struct {
	Ops             int     `json:"ops"`
	Reads           int     `json:"reads"`
	Writes          int     `json:"writes"`
	Successes       int     `json:"successes"`
	SuccessRate     float64 `json:"success_rate"`
	Conflicts       int     `json:"conflicts"`
	MeanLatencyMs   float64 `json:"mean_latency_ms"`
	P50LatencyMs    float64 `json:"p50_latency_ms"`
	P99LatencyMs    float64 `json:"p99_latency_ms"`
	MeanStalenessMs float64 `json:"mean_staleness_ms"`

	// Filled by the Runner from strategy and router state.
	Cache            CacheStats  `json:"cache"`
	L2Cache          CacheStats  `json:"l2_cache"`
	Router           RouterStats `json:"router"`
	DelegateSwitches int         `json:"delegate_switches"`
}

// OutputPaths locates the files written by Finalize and the manifest.
type OutputPaths struct {
	Ops       string
	Resources string
	Manifest  string
}

// RunOutputPaths returns the output layout for runID under resultsDir.
func RunOutputPaths(resultsDir, runID string) OutputPaths {
	return OutputPaths{
		Ops:       filepath.Join(resultsDir, "raw", runID+".parquet"),
		Resources: filepath.Join(resultsDir, "agg", runID+".csv"),
		Manifest:  filepath.Join(resultsDir, "agg", runID+".manifest.json"),
	}
}

// Metrics is the run's OpSink. It stamps each operation with the current
// phase, keeps an append-only operation log, and samples host resources no
// more often than the configured interval.
//
// Thread-safety: NOT thread-safe. A run records from a single goroutine.
type Metrics struct {
	strategy      string
	clock         Clock
	sampler       ResourceSampler
	interval      time.Duration
	excludeWarmup bool
	observers     []OpObserver

	phase      Phase
	ops        []OpResult
	resources  []ResourceSample
	lastSample time.Time
	sampled    bool
	finalized  bool
}

// NewMetrics creates an empty sink. A nil sampler disables resource sampling.
func NewMetrics(strategy string, clock Clock, sampler ResourceSampler, interval time.Duration, excludeWarmup bool) *Metrics {
	return &Metrics{
		strategy:      strategy,
		clock:         clock,
		sampler:       sampler,
		interval:      interval,
		excludeWarmup: excludeWarmup,
		phase:         PhaseInit,
	}
}

// AddObserver registers o to be notified of every completed operation.
func (m *Metrics) AddObserver(o OpObserver) {
	m.observers = append(m.observers, o)
}

// SetPhase sets the phase stamped onto subsequently recorded operations.
func (m *Metrics) SetPhase(p Phase) {
	m.phase = p
}

// RecordOp implements OpSink.
func (m *Metrics) RecordOp(r OpResult) {
	if m.finalized {
		panic("RecordOp after Finalize")
	}
	r.Phase = m.phase
	for _, o := range m.observers {
		o.ObserveOp(m.strategy, r)
	}
	if m.excludeWarmup && r.Phase == PhaseWarmup {
		return
	}
	m.ops = append(m.ops, r)
}

// Tick takes a resource sample if at least the sampling interval has passed
// since the previous one. Sampler errors are logged and the sample skipped.
func (m *Metrics) Tick() {
	if m.sampler == nil {
		return
	}
	now := m.clock.Now()
	if m.sampled && now.Sub(m.lastSample) < m.interval {
		return
	}
	m.sampled = true
	m.lastSample = now

	cpuPct, memPct, err := m.sampler.Sample()
	if err != nil {
		logrus.Warnf("resource sample failed: %v", err)
		return
	}
	m.resources = append(m.resources, ResourceSample{Timestamp: now, CPUPercent: cpuPct, MemPercent: memPct})
}

// Ops returns the recorded operations in record order.
func (m *Metrics) Ops() []OpResult {
	return m.ops
}

// Resources returns the resource samples in time order.
func (m *Metrics) Resources() []ResourceSample {
	return m.resources
}

// Summary aggregates the MEASURE-phase operations.
func (m *Metrics) Summary() RunSummary {
	var s RunSummary
	var latencies, staleness []float64
	for _, r := range m.ops {
		if r.Phase != PhaseMeasure {
			continue
		}
		s.Ops++
		switch r.Kind {
		case OpRead:
			s.Reads++
			staleness = append(staleness, r.StalenessMs)
		case OpWrite:
			s.Writes++
		}
		if r.Success {
			s.Successes++
		}
		if r.Conflict {
			s.Conflicts++
		}
		latencies = append(latencies, r.LatencyMs())
	}
	if s.Ops > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Ops)
	}
	sorted := sortedCopy(latencies)
	s.MeanLatencyMs = CalculateMean(latencies)
	s.P50LatencyMs = CalculatePercentile(sorted, 50)
	s.P99LatencyMs = CalculatePercentile(sorted, 99)
	s.MeanStalenessMs = CalculateMean(staleness)
	return s
}

// Finalize writes the operation log (parquet) and resource log (CSV) to
// paths. Metrics must not be used afterwards.
func (m *Metrics) Finalize(paths OutputPaths) error {
	if m.finalized {
		return fmt.Errorf("metrics already finalized")
	}
	m.finalized = true

	for _, p := range []string{paths.Ops, paths.Resources} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	rows := make([]OpRow, len(m.ops))
	for i, r := range m.ops {
		rows[i] = NewOpRow(r)
	}
	if err := parquet.WriteFile(paths.Ops, rows); err != nil {
		return fmt.Errorf("writing operation log %s: %w", paths.Ops, err)
	}
	if err := writeResourceCSV(paths.Resources, m.resources); err != nil {
		return fmt.Errorf("writing resource log %s: %w", paths.Resources, err)
	}
	logrus.Debugf("wrote %d ops to %s, %d resource samples to %s",
		len(rows), paths.Ops, len(m.resources), paths.Resources)
	return nil
}

func writeResourceCSV(path string, samples []ResourceSample) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "cpu_percent", "mem_percent"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(unixSeconds(s.Timestamp), 'f', 6, 64),
			strconv.FormatFloat(s.CPUPercent, 'f', 2, 64),
			strconv.FormatFloat(s.MemPercent, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
