// Package sweep implements the disk reclamation pipeline: discover
// candidate paths, classify them against a point-in-time liveness snapshot,
// delete the dead ones through the store with bounded retries, and report
// exactly what happened.
//
// The pipeline never decides liveness itself and never bypasses the store
// to unlink files. Its job is sequencing, concurrency, convergence, and
// honest accounting.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/storesweep/internal/bytesize"
	"github.com/marmos91/storesweep/internal/cli/output"
	"github.com/marmos91/storesweep/internal/cli/prompt"
	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/internal/telemetry"
	"github.com/marmos91/storesweep/pkg/store"
)

// ErrConfirmationDeclined is returned when the operator answers no at the
// deletion prompt. It surfaces as a non-zero exit.
var ErrConfirmationDeclined = errors.New("confirmation declined")

// DefaultPreviewLimit caps path previews so a million-path sweep does not
// scroll the terminal into oblivion.
const DefaultPreviewLimit = 20

// Options configures one pipeline invocation. Everything is explicit; no
// state survives between invocations.
type Options struct {
	// Selector picks the candidate discovery mode.
	Selector Selector

	// Root is the store root directory, used for whole-store listing and
	// the free-space estimate.
	Root string

	Strategy  Strategy
	Workers   int
	MaxWaves  int
	ChunkSize int

	// AssumeYes skips the interactive confirmation.
	AssumeYes bool

	// DryRun stops after previewing what would be deleted.
	DryRun bool

	// RunGC triggers store compaction after deletion.
	RunGC bool

	// PreviewLimit caps path listings; 0 disables the cap.
	PreviewLimit int

	// Out receives previews and the summary. Defaults to os.Stdout.
	Out io.Writer
}

// StageDurations holds per-stage wall-clock times.
type StageDurations struct {
	Discover time.Duration `json:"discover"`
	Classify time.Duration `json:"classify"`
	Delete   time.Duration `json:"delete"`
	Compact  time.Duration `json:"compact"`
	Total    time.Duration `json:"total"`
}

// Result is the accounting of one run. It is what the journal stores and
// the metrics exporter reads.
type Result struct {
	RunID        string         `json:"run_id"`
	Started      time.Time      `json:"started"`
	Mode         string         `json:"mode"`
	Strategy     string         `json:"strategy"`
	DryRun       bool           `json:"dry_run"`
	Candidates   int            `json:"candidates"`
	AliveSkipped int            `json:"alive_skipped"`
	Deleted      int            `json:"deleted"`
	Unresolved   int            `json:"unresolved"`
	Waves        int            `json:"waves"`
	FreedBytes   uint64         `json:"freed_bytes"`
	Durations    StageDurations `json:"durations"`

	freed string
}

// Recorder persists a completed run. Implementations must tolerate being
// called after partial-failure runs; recording failures never fail the
// sweep itself.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Pipeline orchestrates the reclamation stages. It is the only component
// that talks to the operator: confirmation, previews, and the summary all
// happen here.
type Pipeline struct {
	store       store.Store
	builder     *Builder
	snapshotter *Snapshotter
	executor    *Executor
	opts        Options
	out         io.Writer
	recorders   []Recorder

	// confirm and free are swapped out by tests.
	confirm func(label string, assumeYes bool) (bool, error)
	free    func(path string) (uint64, error)
}

// NewPipeline validates options and assembles a pipeline over the store.
// Validation happens here, before any store call: a bad selector, age
// threshold, or worker count must fail without side effects.
func NewPipeline(st store.Store, opts Options) (*Pipeline, error) {
	if err := opts.Selector.Validate(); err != nil {
		return nil, err
	}

	executor, err := NewExecutor(st, NewSnapshotter(st), ExecutorOptions{
		Strategy:  opts.Strategy,
		Workers:   opts.Workers,
		MaxWaves:  opts.MaxWaves,
		ChunkSize: opts.ChunkSize,
	})
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &Pipeline{
		store:       st,
		builder:     NewBuilder(opts.Root, st, st),
		snapshotter: NewSnapshotter(st),
		executor:    executor,
		opts:        opts,
		out:         out,
		confirm:     prompt.ConfirmWithForce,
		free:        freeBytes,
	}, nil
}

// AddRecorder registers a run recorder (journal, metrics). Recorders run
// after the summary; their failures are logged, never fatal.
func (p *Pipeline) AddRecorder(r Recorder) {
	p.recorders = append(p.recorders, r)
}

// Run executes the pipeline once.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{
		RunID:    uuid.New().String(),
		Started:  time.Now(),
		Mode:     p.opts.Selector.Mode(),
		Strategy: string(p.opts.Strategy),
		DryRun:   p.opts.DryRun,
	}

	ctx, span := telemetry.StartRunSpan(ctx, res.RunID, res.Mode, res.Strategy, res.DryRun)
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
	}()

	totalStart := time.Now()
	freeBefore, freeErr := p.free(p.opts.Root)
	freeOK := freeErr == nil
	if freeErr != nil {
		logger.Debug("sweep: free space unavailable", "root", p.opts.Root, "error", freeErr)
	}

	logger.Info("sweep: starting run",
		"run_id", res.RunID,
		"mode", res.Mode,
		"strategy", res.Strategy,
		"dry_run", res.DryRun)

	// Stage 1: discovery.
	discoverStart := time.Now()
	stageCtx, stageSpan := telemetry.StartStageSpan(ctx, telemetry.SpanDiscover, telemetry.StoreRoot(p.opts.Root))
	candidates, err := p.builder.Build(stageCtx, p.opts.Selector)
	stageSpan.End()
	if err != nil {
		return nil, err
	}
	res.Durations.Discover = time.Since(discoverStart)
	res.Candidates = candidates.Len()
	telemetry.SetAttributes(ctx, telemetry.Candidates(res.Candidates))

	if candidates.IsEmpty() {
		fmt.Fprintln(p.out, "No candidate paths found.")
		return p.finish(ctx, res, totalStart, freeBefore, freeOK)
	}

	// Stage 2: classification against one fresh snapshot.
	classifyStart := time.Now()
	stageCtx, stageSpan = telemetry.StartStageSpan(ctx, telemetry.SpanClassify)
	snapshot, err := p.snapshotter.Snapshot(stageCtx)
	if err != nil {
		stageSpan.End()
		return nil, err
	}
	deletable, alive := Classify(candidates, snapshot)
	stageSpan.SetAttributes(telemetry.DeadPaths(snapshot.Len()), telemetry.AliveSkipped(alive.Len()))
	stageSpan.End()
	res.Durations.Classify = time.Since(classifyStart)
	res.AliveSkipped = alive.Len()

	if alive.Len() > 0 {
		fmt.Fprintf(p.out, "Skipping %d alive path(s):\n", alive.Len())
		output.PreviewList(p.out, alive.Paths(), p.opts.PreviewLimit)
	}

	// Stage 3: nothing deletable.
	if deletable.IsEmpty() {
		fmt.Fprintln(p.out, "No deletable paths.")
		return p.finish(ctx, res, totalStart, freeBefore, freeOK)
	}

	// Stage 4: preview, confirm, delete.
	fmt.Fprintf(p.out, "Will delete %d path(s):\n", deletable.Len())
	output.PreviewList(p.out, deletable.Paths(), p.opts.PreviewLimit)

	if p.opts.DryRun {
		fmt.Fprintln(p.out, "Dry run: no paths were deleted.")
		return p.finish(ctx, res, totalStart, freeBefore, freeOK)
	}

	confirmed, err := p.confirm(fmt.Sprintf("Delete %d path(s)?", deletable.Len()), p.opts.AssumeYes)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrConfirmationDeclined
	}

	deleteStart := time.Now()
	stageCtx, stageSpan = telemetry.StartStageSpan(ctx, telemetry.SpanDelete, telemetry.BatchSize(p.opts.ChunkSize))
	execResult, err := p.executor.Execute(stageCtx, deletable, alive)
	if err != nil {
		stageSpan.End()
		return nil, err
	}
	stageSpan.SetAttributes(
		telemetry.Deleted(execResult.Deleted),
		telemetry.Unresolved(execResult.Unresolved.Len()),
		telemetry.Wave(execResult.Waves),
	)
	stageSpan.End()
	res.Durations.Delete = time.Since(deleteStart)
	res.Deleted = execResult.Deleted
	res.Unresolved = execResult.Unresolved.Len()
	res.Waves = execResult.Waves
	res.AliveSkipped = alive.Len()

	if execResult.Unresolved.Len() > 0 {
		fmt.Fprintf(p.out, "Failed to delete %d path(s):\n", execResult.Unresolved.Len())
		output.PreviewList(p.out, execResult.Unresolved.Paths(), p.opts.PreviewLimit)
	}

	return p.finish(ctx, res, totalStart, freeBefore, freeOK)
}

// finish runs optional compaction, computes the free-space delta, emits
// the summary, and hands the result to the recorders.
func (p *Pipeline) finish(ctx context.Context, res *Result, totalStart time.Time, freeBefore uint64, freeOK bool) (*Result, error) {
	if p.opts.RunGC && !p.opts.DryRun {
		logger.Info("sweep: running store compaction")
		compactStart := time.Now()
		stageCtx, stageSpan := telemetry.StartStageSpan(ctx, telemetry.SpanCompact)
		err := p.store.CollectGarbage(stageCtx)
		stageSpan.End()
		if err != nil {
			return nil, fmt.Errorf("compaction failed: %w", err)
		}
		res.Durations.Compact = time.Since(compactStart)
	}

	res.freed = "unknown"
	if freeOK {
		if freeAfter, err := p.free(p.opts.Root); err == nil {
			delta := bytesize.DeltaOf(freeBefore, freeAfter)
			res.FreedBytes = delta.Freed()
			res.freed = delta.String()
		}
	}

	res.Durations.Total = time.Since(totalStart)

	p.printSummary(res)

	logger.Info("sweep: run complete",
		"run_id", res.RunID,
		"deleted", res.Deleted,
		"unresolved", res.Unresolved,
		"duration_ms", logger.Duration(res.Started))

	for _, r := range p.recorders {
		if err := r.Record(ctx, res); err != nil {
			logger.Warn("sweep: failed to record run", "error", err)
		}
	}

	return res, nil
}

// printSummary writes the stable single-line summary. Fields and their
// order never change between runs; scripts parse this line.
func (p *Pipeline) printSummary(res *Result) {
	fmt.Fprintf(p.out,
		"summary: mode=%s strategy=%s dry_run=%t candidates=%d alive_skipped=%d deleted=%d unresolved=%d waves=%d freed=%s discover_s=%.2f classify_s=%.2f delete_s=%.2f compact_s=%.2f total_s=%.2f\n",
		res.Mode,
		res.Strategy,
		res.DryRun,
		res.Candidates,
		res.AliveSkipped,
		res.Deleted,
		res.Unresolved,
		res.Waves,
		res.freed,
		res.Durations.Discover.Seconds(),
		res.Durations.Classify.Seconds(),
		res.Durations.Delete.Seconds(),
		res.Durations.Compact.Seconds(),
		res.Durations.Total.Seconds(),
	)
}
