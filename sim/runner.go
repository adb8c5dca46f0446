package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coherence-sim/coherence-sim/sim/trace"
	"github.com/coherence-sim/coherence-sim/sim/workload"
)

// Phase is a stage of the run lifecycle. Phases only move forward.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWarmup
	PhaseMeasure
	PhaseCooldown
	PhaseFinalize
)

var phaseNames = map[Phase]string{
	PhaseInit:     "init",
	PhaseWarmup:   "warmup",
	PhaseMeasure:  "measure",
	PhaseCooldown: "cooldown",
	PhaseFinalize: "finalize",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the wall clock, typically with a ManualClock in tests.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithResourceSampler replaces the host resource sampler. nil disables sampling.
func WithResourceSampler(s ResourceSampler) RunnerOption {
	return func(r *Runner) { r.resourceSampler = s }
}

// WithObserver registers an observer of every completed operation.
func WithObserver(o OpObserver) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// RunResult is what a completed run produced.
type RunResult struct {
	Manifest *RunManifest
	Paths    OutputPaths
}

// Runner drives one experiment run through INIT, WARMUP, MEASURE, COOLDOWN
// and FINALIZE. A Runner owns all of its state and shares nothing with other
// runners, so independent runs may execute in parallel.
// A Runner is single-use.
type Runner struct {
	cfg             Config
	clock           Clock
	resourceSampler ResourceSampler
	observers       []OpObserver

	phase Phase
	used  bool

	store   *ContextStore
	router  *MessageRouter
	groups  *GroupCaches
	trace   *trace.SimulationTrace
	metrics *Metrics
	agents  []*Agent

	rng       *PartitionedRNG
	access    workload.AccessSampler
	generator workload.Generator
	payload   string
}

// NewRunner validates cfg and builds every run component.
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	r := &Runner{
		cfg:             *cfg,
		clock:           RealClock{},
		resourceSampler: HostSampler{},
		phase:           PhaseInit,
	}
	for _, opt := range opts {
		opt(r)
	}

	access, err := workload.NewAccessSampler(r.cfg.AccessParams())
	if err != nil {
		return nil, fmt.Errorf("access pattern: %w", err)
	}
	gen, err := workload.NewGenerator(r.cfg.Workload.Type, r.cfg.ReadRatio())
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}
	r.access = access
	r.generator = gen
	r.rng = NewPartitionedRNG(NewSimulationKey(r.cfg.Seed))
	r.payload = strings.Repeat("X", r.cfg.Context.SizeTokens)

	r.store = NewContextStore(r.clock)
	r.router = NewMessageRouter(r.cfg.NetworkDelay(), r.clock)
	r.groups = NewGroupCaches(r.cfg.Agents.GroupMod, r.cfg.MCP.L2Capacity)
	r.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(r.cfg.TraceLevel)})

	strategy := r.cfg.StrategyName()
	r.metrics = NewMetrics(strategy, r.clock, r.resourceSampler,
		seconds(r.cfg.Measurement.LogIntervalSeconds), r.cfg.Measurement.ExcludeWarmup)
	for _, o := range r.observers {
		r.metrics.AddObserver(o)
	}

	env := StrategyEnv{Store: r.store, Router: r.router, Clock: r.clock, Groups: r.groups, Trace: r.trace}
	scfg := r.cfg.StrategyConfig()
	r.agents = make([]*Agent, r.cfg.Agents.Count)
	for i := range r.agents {
		r.router.Register(i)
		r.agents[i] = NewAgent(i, NewStrategy(strategy, i, env, scfg), r.clock, r.metrics)
	}
	return r, nil
}

// Agents returns the run's agents, indexed by id.
func (r *Runner) Agents() []*Agent { return r.agents }

// Store returns the shared context store.
func (r *Runner) Store() *ContextStore { return r.store }

// Metrics returns the run's metrics sink.
func (r *Runner) Metrics() *Metrics { return r.metrics }

// Trace returns the decision trace.
func (r *Runner) Trace() *trace.SimulationTrace { return r.trace }

// Phase returns the current lifecycle phase.
func (r *Runner) Phase() Phase { return r.phase }

// Run executes the full lifecycle and persists the run's outputs.
// Cancelling ctx aborts the run in any phase before FINALIZE, including the
// INIT and COOLDOWN idle waits; nothing is persisted in that case.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r.used {
		return nil, fmt.Errorf("runner for %s already used", r.cfg.RunID)
	}
	r.used = true
	m := r.cfg.Measurement
	manifest := NewRunManifest(r.cfg, r.clock.Now())
	logrus.Infof("[%s] starting run: strategy=%s agents=%d workload=%s pattern=%s execution=%s",
		r.cfg.RunID, r.cfg.StrategyName(), r.cfg.Agents.Count, r.cfg.Workload.Type,
		r.cfg.AccessPattern.Type, manifest.ExecutionID)

	r.logPhase()
	if r.cfg.Context.Preload {
		for id := 0; id < r.cfg.Context.Items; id++ {
			r.store.Write(workload.KeyFor(id), r.payload)
		}
		logrus.Debugf("[%s] preloaded %d keys", r.cfg.RunID, r.store.Len())
	}
	if err := r.idle(ctx, seconds(m.InitSeconds)); err != nil {
		return nil, err
	}

	r.advance(PhaseWarmup)
	next := 0
	roundRobin := func() int {
		id := next % len(r.agents)
		next++
		return id
	}
	if err := r.drive(ctx, seconds(m.WarmupSeconds), roundRobin); err != nil {
		return nil, err
	}

	r.advance(PhaseMeasure)
	if err := r.drive(ctx, seconds(m.MeasureSeconds), r.measureDispatch()); err != nil {
		return nil, err
	}

	r.advance(PhaseCooldown)
	if err := r.idle(ctx, seconds(m.CooldownSeconds)); err != nil {
		return nil, err
	}

	r.advance(PhaseFinalize)
	return r.finalize(manifest)
}

// advance moves to phase p. Panics if p does not follow the current phase.
func (r *Runner) advance(p Phase) {
	if p <= r.phase {
		panic(fmt.Sprintf("phase cannot move from %s to %s", r.phase, p))
	}
	r.phase = p
	r.metrics.SetPhase(p)
	r.logPhase()
}

// idle waits d with no operations issued.
func (r *Runner) idle(ctx context.Context, d time.Duration) error {
	if err := r.clock.SleepContext(ctx, d); err != nil {
		return r.aborted(err)
	}
	return nil
}

func (r *Runner) aborted(err error) error {
	return fmt.Errorf("run %s aborted in %s: %w", r.cfg.RunID, r.phase, err)
}

func (r *Runner) logPhase() {
	logrus.Infof("[%s] phase %s", r.cfg.RunID, strings.ToUpper(r.phase.String()))
}

func (r *Runner) measureDispatch() func() int {
	n := len(r.agents)
	if r.cfg.Measurement.Dispatch == DispatchClock {
		return func() int { return int(r.clock.Now().UnixMilli() % int64(n)) }
	}
	rng := r.rng.ForSubsystem(SubsystemDispatch)
	return func() int { return rng.Intn(n) }
}

// drive runs the operation loop for d: one Workload tick per tick interval,
// each tick's operations dispatched to the agent chosen by pick.
func (r *Runner) drive(ctx context.Context, d time.Duration, pick func() int) error {
	interval := r.cfg.TickInterval()
	if interval <= 0 {
		interval = time.Nanosecond
	}
	kindRNG := r.rng.ForSubsystem(SubsystemWorkload)
	keyRNG := r.rng.ForSubsystem(SubsystemAccess)

	start := r.clock.Now()
	end := start.Add(d)
	nextTick := start
	ticks, ops := 0, 0
	for r.clock.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return r.aborted(err)
		}
		count, kind := r.generator.Next(r.clock.Now().Sub(start), kindRNG)
		for i := 0; i < count; i++ {
			agent := r.agents[pick()]
			key := workload.KeyFor(r.access.Sample(keyRNG))
			agent.Step(OpKind(kind), key, r.payload)
			ops++
		}
		r.metrics.Tick()
		ticks++

		nextTick = nextTick.Add(interval)
		if now := r.clock.Now(); nextTick.After(now) {
			if err := r.clock.SleepContext(ctx, nextTick.Sub(now)); err != nil {
				return r.aborted(err)
			}
		} else {
			nextTick = now
		}
	}
	logrus.Debugf("[%s] %s: %d ticks, %d ops", r.cfg.RunID, r.phase, ticks, ops)
	return nil
}

type switchCounter interface {
	Switches() int
}

func (r *Runner) finalize(manifest *RunManifest) (*RunResult, error) {
	summary := r.metrics.Summary()
	summary.Router = r.router.Stats()
	summary.L2Cache = r.groups.Stats()
	for _, a := range r.agents {
		if cr, ok := a.Strategy.(CacheReporter); ok {
			summary.Cache.Add(cr.CacheStats())
		}
		if sc, ok := a.Strategy.(switchCounter); ok {
			summary.DelegateSwitches += sc.Switches()
		}
		if rel, ok := a.Strategy.(Releaser); ok {
			rel.Release()
		}
	}

	logrus.Debugf("[%s] seed %d, rng streams %v", r.cfg.RunID, r.rng.Key(), r.rng.Subsystems())
	paths := RunOutputPaths(r.cfg.ResultsDir, r.cfg.RunID)
	if err := r.metrics.Finalize(paths); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.cfg.RunID, err)
	}

	manifest.FinishedAt = r.clock.Now()
	manifest.Summary = summary
	if sw := r.trace.Switches(); sw != nil {
		manifest.Switches = sw
	}
	if r.trace.Enabled() {
		manifest.Decisions = trace.Summarize(r.trace)
	}
	if err := manifest.Write(paths.Manifest); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.cfg.RunID, err)
	}

	logrus.Infof("[%s] finished: ops=%d success=%.3f latency mean=%.3fms p50=%.3fms p99=%.3fms staleness=%.3fms switches=%d",
		r.cfg.RunID, summary.Ops, summary.SuccessRate, summary.MeanLatencyMs,
		summary.P50LatencyMs, summary.P99LatencyMs, summary.MeanStalenessMs, summary.DelegateSwitches)
	return &RunResult{Manifest: manifest, Paths: paths}, nil
}
