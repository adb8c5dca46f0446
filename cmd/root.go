package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// CLI flags for the run command
	configPath  string // Single run configuration file
	configGlob  string // Glob selecting many run configuration files
	workers     int    // Runs executed in parallel
	resultsDir  string // Overrides results_dir of every config
	logLevel    string // Log verbosity level
	metricsAddr string // Address serving Prometheus metrics; empty disables

	// CLI flags for the gen-configs command
	genOut  string // Output directory for generated configs
	genSeed int64  // Seed written into every generated config
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "coherence-sim",
	Short: "Benchmark simulator for multi-agent context coherence strategies",
}

// runCmd executes one or many experiment runs
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run experiments from YAML configs",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		paths, err := ResolveConfigPaths(configPath, configGlob)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		opts := BatchOptions{Workers: workers, ResultsDir: resultsDir}
		report, err := RunBatchWithMetrics(ctx, paths, opts, metricsAddr)
		stop()
		logrus.Infof("%d of %d runs succeeded", report.Succeeded(), len(report.Outcomes))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// genConfigsCmd expands the experiment grid into YAML files
var genConfigsCmd = &cobra.Command{
	Use:   "gen-configs",
	Short: "Generate the strategy x agents x size x pattern x workload config grid",
	Run: func(cmd *cobra.Command, args []string) {
		n, err := WriteGrid(genOut, GridConfigs(genSeed))
		if err != nil {
			logrus.Fatalf("Could not write configs: %v", err)
		}
		logrus.Infof("Wrote %d configs to %s", n, genOut)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a run config YAML")
	runCmd.Flags().StringVar(&configGlob, "glob", "", "Glob of run config YAMLs (e.g. configs/*.yaml)")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Runs executed in parallel")
	runCmd.Flags().StringVar(&resultsDir, "results-dir", "", "Override results_dir of every config")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	genConfigsCmd.Flags().StringVar(&genOut, "out", "", "Output directory")
	genConfigsCmd.Flags().Int64Var(&genSeed, "seed", 42, "Seed written into every config")
	_ = genConfigsCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(genConfigsCmd)
}
