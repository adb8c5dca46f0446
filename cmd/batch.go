package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coherence-sim/coherence-sim/sim"
	"github.com/coherence-sim/coherence-sim/sim/telemetry"
)

// BatchOptions controls how a set of runs is executed.
type BatchOptions struct {
	Workers    int    // parallel runs; values below 1 mean 1
	ResultsDir string // overrides results_dir when set

	// Collector receives every operation and run outcome when set.
	Collector *telemetry.Collector

	// NewClock and NewSampler build per-run collaborators. nil selects the
	// wall clock and the host sampler.
	NewClock   func() sim.Clock
	NewSampler func() sim.ResourceSampler
}

// RunOutcome is the result of one config in a batch.
type RunOutcome struct {
	Path   string
	RunID  string
	Result *sim.RunResult
	Err    error
}

// BatchReport lists outcomes in input order.
type BatchReport struct {
	Outcomes []RunOutcome
}

// Succeeded counts runs that completed without error.
func (r BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// ResolveConfigPaths returns the config files selected by exactly one of
// path or glob, sorted.
func ResolveConfigPaths(path, glob string) ([]string, error) {
	switch {
	case path != "" && glob != "":
		return nil, fmt.Errorf("--config and --glob are mutually exclusive")
	case path != "":
		return []string{path}, nil
	case glob != "":
		matches, err := filepath.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", glob, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no configs match %q", glob)
		}
		sort.Strings(matches)
		return matches, nil
	default:
		return nil, fmt.Errorf("one of --config or --glob is required")
	}
}

// RunBatch executes every config with at most opts.Workers runs in flight.
// Each run is fully isolated: a failing run is logged and recorded in the
// report, and the remaining runs continue. Returns an error if any run failed.
func RunBatch(ctx context.Context, paths []string, opts BatchOptions) (BatchReport, error) {
	limit := opts.Workers
	if limit < 1 {
		limit = 1
	}
	report := BatchReport{Outcomes: make([]RunOutcome, len(paths))}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			report.Outcomes[i] = runOne(ctx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	failed := len(paths) - report.Succeeded()
	if failed > 0 {
		return report, fmt.Errorf("%d of %d runs failed", failed, len(paths))
	}
	return report, nil
}

func runOne(ctx context.Context, path string, opts BatchOptions) RunOutcome {
	out := RunOutcome{Path: path}
	strategy := "unknown"
	fail := func(err error) RunOutcome {
		out.Err = err
		logrus.Errorf("run %s failed: %v", path, err)
		if opts.Collector != nil {
			opts.Collector.RunFinished(strategy, nil)
		}
		return out
	}

	cfg, err := sim.LoadConfig(path)
	if err != nil {
		return fail(err)
	}
	out.RunID = cfg.RunID
	if name := cfg.StrategyName(); name != "" {
		strategy = name
	}
	if opts.ResultsDir != "" {
		cfg.ResultsDir = opts.ResultsDir
	}

	var runnerOpts []sim.RunnerOption
	if opts.NewClock != nil {
		runnerOpts = append(runnerOpts, sim.WithClock(opts.NewClock()))
	}
	if opts.NewSampler != nil {
		runnerOpts = append(runnerOpts, sim.WithResourceSampler(opts.NewSampler()))
	}
	if opts.Collector != nil {
		runnerOpts = append(runnerOpts, sim.WithObserver(opts.Collector))
	}

	runner, err := sim.NewRunner(cfg, runnerOpts...)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", path, err))
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return fail(err)
	}
	out.Result = res
	if opts.Collector != nil {
		opts.Collector.RunFinished(strategy, res)
	}
	return out
}
