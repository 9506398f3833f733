package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"grpcheck/internal/config"
	"grpcheck/internal/definition"
	"grpcheck/internal/grpcclient"
	"grpcheck/internal/orchestrator"
	"grpcheck/internal/predicate"
	"grpcheck/internal/report"
	"grpcheck/internal/retry"
	"grpcheck/internal/watch"
	"grpcheck/pkg/logging"
)

var (
	runAddress     string
	runConfigPath  string
	runParallel    int
	runTimeout     time.Duration
	runFailFast    bool
	runVerbose     bool
	runDebug       bool
	runDryRun      bool
	runNoRetries   bool
	runMaxAttempts int
	runReportPath  string
	runWatch       bool
	runClient      string
)

var runCmd = &cobra.Command{
	Use:   "run [file|dir ...]",
	Short: "Execute gRPC test definitions",
	Long: `Execute one or more test definition files against their target
services. Directories are walked recursively for *` + definition.FileExt + ` files.

Files run concurrently through a bounded worker pool; each case holds one
slot for its full parse-call-validate lifecycle. Failures are collected and
rendered together at the end of the batch.

Example usage:
  grpcheck run tests/                      # run a whole directory
  grpcheck run tests/get-user.gct          # run a single definition
  grpcheck run --address=localhost:50051 tests/
  grpcheck run --parallel=16 --fail-fast tests/
  grpcheck run --dry-run tests/            # render commands, no network
  grpcheck run --watch tests/              # re-run on file change`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(runCmd)
	registerRunFlags()
}

func registerRunFlags() {
	runCmd.Flags().StringVarP(&runAddress, "address", "a", "", "Default target address for definitions without an ADDRESS section")
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", config.DefaultFileName, "Path to the runner configuration file")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 0, "Number of parallel workers (0 = logical CPU count)")
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "Per-call timeout for the external client")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop scheduling new cases after the first failure")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Report each case as it finishes")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug logging")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Render client commands without executing them")
	runCmd.Flags().BoolVar(&runNoRetries, "no-retries", false, "Disable transient-failure retries and the liveness probe")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "Maximum attempts per call including the first (0 = configured default)")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Write the JSON suite summary to this path")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Re-run the batch when definition files change")
	runCmd.Flags().StringVar(&runClient, "client", "", "External gRPC client binary (default grpcurl)")

	_ = runCmd.MarkFlagFilename("config", "yaml", "yml")
	_ = runCmd.MarkFlagFilename("report", "json")
}

func runTests(cmd *cobra.Command, args []string) error {
	initLogging()

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)

	files, err := definition.Discover(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s definition files found in %v", definition.FileExt, args)
	}

	// The verb registry is built once here and injected; nothing else may
	// register verbs after startup. cfg.PluginDir is the hook point for the
	// external plugin loader to contribute additional verbs.
	registry := predicate.NewDefaultRegistry()
	if cfg.PluginDir != "" {
		logging.Info("Run", "verb plugin directory configured: %s", cfg.PluginDir)
	}

	executor := grpcclient.New(cfg.ClientBinary, cfg.Timeout.Std())
	executor.DryRun = runDryRun

	retriesDisabled := cfg.Retry.Disabled || runNoRetries
	policy := retry.Policy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialDelay:      cfg.Retry.InitialDelay.Std(),
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Classify:          retry.IsTransient,
	}

	reporter := report.NewConsole(os.Stdout, runVerbose || runDebug, cfg.ReportPath)
	orch := orchestrator.New(orchestrator.Config{
		DefaultAddress:  cfg.DefaultAddress,
		Concurrency:     cfg.Parallel,
		FailFast:        runFailFast,
		RetriesDisabled: retriesDisabled,
	}, executor, retry.New(policy), predicate.NewEvaluator(registry), reporter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orch.RunMany(ctx, files)

	if runWatch {
		logging.Info("Run", "watching for changes, interrupt to stop")
		return rerunOnChange(ctx, args, files, orch, 500*time.Millisecond)
	}

	if failed := result.Failed + result.Errored; failed > 0 {
		return fmt.Errorf("%d of %d test(s) did not pass", failed, len(result.Outcomes))
	}
	return nil
}

// rerunOnChange re-runs the batch whenever definition files change. Each
// re-run re-discovers from the original arguments, so files created after
// startup join the batch.
func rerunOnChange(ctx context.Context, args, files []string, orch *orchestrator.Orchestrator, debounce time.Duration) error {
	return watch.Run(ctx, files, definition.FileExt, debounce, func() {
		current, err := definition.Discover(args)
		if err != nil {
			logging.Error("Run", err, "re-discovering definition files")
			return
		}
		orch.RunMany(ctx, current)
	})
}

func initLogging() {
	level := logging.LevelWarn
	if runVerbose {
		level = logging.LevelInfo
	}
	if runDebug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)
}

// applyRunFlags lets explicit flags override file-sourced configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("address") {
		cfg.DefaultAddress = runAddress
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = runParallel
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = config.Duration(runTimeout)
	}
	if cmd.Flags().Changed("max-attempts") && runMaxAttempts > 0 {
		cfg.Retry.MaxAttempts = runMaxAttempts
	}
	if cmd.Flags().Changed("report") {
		cfg.ReportPath = runReportPath
	}
	if cmd.Flags().Changed("client") {
		cfg.ClientBinary = runClient
	}
}
