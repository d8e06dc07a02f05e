package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/internal/cli/prompt"
	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/internal/telemetry"
	"github.com/marmos91/storesweep/pkg/config"
	"github.com/marmos91/storesweep/pkg/journal"
	"github.com/marmos91/storesweep/pkg/metrics"
	"github.com/marmos91/storesweep/pkg/sweep"
)

var (
	runAll       bool
	runOlderThan string
	runPaths     []string
	runPackage   string

	runStrategy  string
	runWorkers   int
	runMaxWaves  int
	runChunkSize int

	runYes    bool
	runDryRun bool
	runGC     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reclamation pipeline",
	Long: `Discover candidate paths, classify them against the store's liveness
oracle, delete the dead ones, and optionally compact the store.

Exactly one selection mode is required:

  --all              every entry directly under the store root
  --older-than Nd    dead paths not modified for more than N days
  --path P           the given paths (repeatable)
  --package NAME     a package's store path plus its referrer closure

Deletion asks for confirmation unless --yes is set. Paths that turn alive
between the snapshot and the delete are skipped, never deleted; dead paths
that resist deletion are reported as unresolved and left for the next run.

Examples:
  # Interactive sweep of everything deletable, with compaction
  storesweep run --all --gc

  # Unattended nightly profile: single pass, no prompt
  storesweep run --all --strategy quick --yes

  # Remove a package and everything that refers to it
  storesweep run --package legacy-toolchain-1.2

  # See what a 30-day sweep would delete without deleting it
  storesweep run --older-than 30d --dry-run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "Sweep every entry under the store root")
	runCmd.Flags().StringVar(&runOlderThan, "older-than", "", "Sweep dead paths older than this, e.g. 30d")
	runCmd.Flags().StringArrayVar(&runPaths, "path", nil, "Sweep the given path (repeatable)")
	runCmd.Flags().StringVar(&runPackage, "package", "", "Sweep a package and its referrer closure")

	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Deletion strategy (quick|iterative)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker pool size")
	runCmd.Flags().IntVar(&runMaxWaves, "max-waves", 0, "Retry wave cap for the iterative strategy")
	runCmd.Flags().IntVar(&runChunkSize, "chunk-size", 0, "Paths per delete batch")

	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Skip the deletion confirmation")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Preview what would be deleted without deleting")
	runCmd.Flags().BoolVar(&runGC, "gc", false, "Run store compaction after deletion")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	ctx := cmd.Context()

	shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		// Telemetry is observability, not correctness; a dead collector
		// must not block a sweep.
		logger.Warn("telemetry unavailable, continuing without", "error", err)
	} else if shutdown != nil {
		defer shutdown()
	}

	strategy, err := sweep.ParseStrategy(cfg.Sweep.Strategy)
	if err != nil {
		return err
	}

	pipeline, err := sweep.NewPipeline(buildStore(cfg), sweep.Options{
		Selector: sweep.Selector{
			All:       runAll,
			OlderThan: runOlderThan,
			Paths:     runPaths,
			Package:   runPackage,
		},
		Root:         cfg.Store.Root,
		Strategy:     strategy,
		Workers:      cfg.Sweep.Workers,
		MaxWaves:     cfg.Sweep.MaxWaves,
		ChunkSize:    cfg.Sweep.ChunkSize,
		AssumeYes:    runYes,
		DryRun:       runDryRun,
		RunGC:        runGC,
		PreviewLimit: cfg.Sweep.PreviewLimit,
	})
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled && !runDryRun {
		j, err := journal.Open(journal.Options{
			Path:            cfg.Journal.Path,
			MaxValueLogSize: int64(cfg.Journal.MaxSize.Uint64()),
		})
		if err != nil {
			logger.Warn("journal unavailable, run will not be recorded", "path", cfg.Journal.Path, "error", err)
		} else {
			defer func() { _ = j.Close() }()
			pipeline.AddRecorder(j)
		}
	}

	if cfg.Metrics.Enabled && !runDryRun {
		pipeline.AddRecorder(metrics.NewTextfileRecorder(cfg.Metrics.TextfileDir))
	}

	_, err = pipeline.Run(ctx)
	if errors.Is(err, sweep.ErrConfirmationDeclined) || prompt.IsAborted(err) {
		return fmt.Errorf("sweep aborted")
	}
	return err
}

// applyRunFlags overlays per-invocation flags onto the loaded configuration.
// Only flags the user actually set override the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("strategy") {
		cfg.Sweep.Strategy = runStrategy
	}
	if cmd.Flags().Changed("workers") {
		cfg.Sweep.Workers = runWorkers
	}
	if cmd.Flags().Changed("max-waves") {
		cfg.Sweep.MaxWaves = runMaxWaves
	}
	if cmd.Flags().Changed("chunk-size") {
		cfg.Sweep.ChunkSize = runChunkSize
	}
}

// initTelemetry starts tracing and profiling when configured. The returned
// shutdown flushes both; it is nil when telemetry is disabled.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	if !cfg.Telemetry.Enabled && !cfg.Telemetry.Profiling.Enabled {
		return nil, nil
	}

	traceShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "storesweep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	var profShutdown func() error
	if cfg.Telemetry.Profiling.Enabled {
		profShutdown, err = telemetry.InitProfiling(telemetry.ProfilingConfig{
			Enabled:        true,
			ServiceName:    "storesweep",
			ServiceVersion: Version,
			Endpoint:       cfg.Telemetry.Profiling.Endpoint,
			ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		})
		if err != nil {
			logger.Warn("profiling unavailable", "error", err)
		}
	}

	return func() {
		if profShutdown != nil {
			if err := profShutdown(); err != nil {
				logger.Debug("profiler shutdown failed", "error", err)
			}
		}
		if err := traceShutdown(context.Background()); err != nil {
			logger.Debug("tracer shutdown failed", "error", err)
		}
	}, nil
}
