package sweep

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/pkg/pathset"
	"github.com/marmos91/storesweep/pkg/store"
)

// Strategy selects the deletion loop.
type Strategy string

const (
	// StrategyQuick submits everything once and reports what stuck.
	// Suits cron runs where the next pass mops up stragglers.
	StrategyQuick Strategy = "quick"

	// StrategyIterative retries survivors over multiple waves with
	// shrinking batches. Suits interactive runs where reclaiming as much
	// as possible in one invocation matters.
	StrategyIterative Strategy = "iterative"
)

// DefaultMaxWaves bounds the iterative strategy's retry loop.
const DefaultMaxWaves = 5

// DefaultChunkSize is the number of paths per delete invocation. Large
// enough to amortize process startup, small enough that one refused path
// does not pin a huge batch.
const DefaultChunkSize = 100

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyQuick, StrategyIterative:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("invalid strategy %q (valid: quick, iterative)", s)
	}
}

// DefaultWorkers returns the worker pool size for this machine,
// clamp(NumCPU, 4, 32).
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 4 {
		return 4
	}
	if n > 32 {
		return 32
	}
	return n
}

// ExecutorOptions configures the deletion executor. All fields are
// explicit; there is no ambient state shared between invocations.
type ExecutorOptions struct {
	Strategy  Strategy
	Workers   int
	MaxWaves  int
	ChunkSize int
}

// ExecResult is what a deletion strategy reports back.
type ExecResult struct {
	// Deleted is the number of paths verified gone from disk.
	Deleted int

	// Unresolved holds paths that were submitted but still exist and are
	// still dead. Never assumed deleted.
	Unresolved *pathset.Set

	// Waves is how many submit cycles ran.
	Waves int
}

// Executor deletes a deletable set through the store, verifying outcomes
// against the filesystem. The delete command's exit status is never
// trusted as a progress signal: a path is deleted when it is gone.
type Executor struct {
	deleter     store.Deleter
	snapshotter *Snapshotter
	opts        ExecutorOptions

	// exists is swapped out by tests.
	exists func(path string) bool
}

// NewExecutor validates options and creates an executor.
func NewExecutor(deleter store.Deleter, snapshotter *Snapshotter, opts ExecutorOptions) (*Executor, error) {
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.Workers)
	}
	if opts.MaxWaves <= 0 {
		return nil, fmt.Errorf("max waves must be positive, got %d", opts.MaxWaves)
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}

	return &Executor{
		deleter:     deleter,
		snapshotter: snapshotter,
		opts:        opts,
		exists:      statExists,
	}, nil
}

func statExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Execute runs the configured strategy over the deletable set. Paths that
// reclassify as alive mid-process are appended to alive, for both
// strategies. The input sets are the pipeline's; deletable is not mutated.
func (e *Executor) Execute(ctx context.Context, deletable, alive *pathset.Set) (ExecResult, error) {
	switch e.opts.Strategy {
	case StrategyQuick:
		return e.runQuick(ctx, deletable, alive)
	default:
		return e.runIterative(ctx, deletable, alive)
	}
}

// runQuick submits every path once, then verifies. Survivors are
// re-snapshotted and re-classified a single time so the unresolved report
// never includes paths that have simply turned alive.
func (e *Executor) runQuick(ctx context.Context, deletable, alive *pathset.Set) (ExecResult, error) {
	res := ExecResult{Unresolved: pathset.New()}

	pending := deletable.Paths()
	if len(pending) == 0 {
		return res, nil
	}
	res.Waves = 1

	logger.Info("sweep: deleting", "strategy", "quick", "paths", len(pending), "chunk", e.opts.ChunkSize)

	if err := e.submit(ctx, pending, e.opts.ChunkSize); err != nil {
		res.Unresolved = pathset.New(pending...)
		return res, err
	}

	survivors, err := e.surviving(ctx, pending)
	if err != nil {
		res.Unresolved = pathset.New(pending...)
		return res, err
	}

	res.Deleted = len(pending) - len(survivors)
	if len(survivors) == 0 {
		return res, nil
	}

	snap, err := e.snapshotter.Snapshot(ctx)
	if err != nil {
		res.Unresolved = pathset.New(survivors...)
		return res, err
	}

	stillDead, nowAlive := Classify(pathset.New(survivors...), snap)
	if nowAlive.Len() > 0 {
		logger.Info("sweep: paths turned alive during deletion, skipped", "count", nowAlive.Len())
		alive.AddAll(nowAlive.Paths()...)
	}
	res.Unresolved = stillDead

	return res, nil
}

// runIterative retries survivors over up to MaxWaves waves. Each wave sees
// only the residue of the previous one: still existing, still dead against
// a snapshot taken after that wave.
func (e *Executor) runIterative(ctx context.Context, deletable, alive *pathset.Set) (ExecResult, error) {
	res := ExecResult{Unresolved: pathset.New()}

	pending := deletable.Paths()
	chunk := e.opts.ChunkSize

	for wave := 1; wave <= e.opts.MaxWaves && len(pending) > 0; wave++ {
		res.Waves = wave
		logger.Info("sweep: starting wave", "wave", wave, "pending", len(pending), "chunk", chunk)

		if err := e.submit(ctx, pending, chunk); err != nil {
			res.Unresolved = pathset.New(pending...)
			return res, err
		}

		survivors, err := e.surviving(ctx, pending)
		if err != nil {
			res.Unresolved = pathset.New(pending...)
			return res, err
		}

		progress := len(pending) - len(survivors)
		res.Deleted += progress
		logger.Info("sweep: wave complete", "wave", wave, "deleted", progress, "remaining", len(survivors))

		if len(survivors) == 0 {
			return res, nil
		}

		if progress == 0 {
			if chunk == 1 {
				// Retrying the same single-path batches cannot go
				// differently; stop instead of burning the wave budget.
				logger.Warn("sweep: no progress at chunk size 1, stopping", "wave", wave, "pending", len(survivors))
				pending = survivors
				break
			}
			// Batches failed wholesale. Size-1 batches isolate paths
			// with ordering-sensitive failures.
			logger.Info("sweep: no progress, retrying with single-path batches", "wave", wave)
			chunk = 1
		}

		// Survivors are only retried if a fresh snapshot still proves
		// them dead. A path that turned alive is skipped for good.
		snap, err := e.snapshotter.Snapshot(ctx)
		if err != nil {
			res.Unresolved = pathset.New(survivors...)
			return res, err
		}

		stillDead, nowAlive := Classify(pathset.New(survivors...), snap)
		if nowAlive.Len() > 0 {
			logger.Info("sweep: paths turned alive during deletion, skipped", "count", nowAlive.Len())
			alive.AddAll(nowAlive.Paths()...)
		}
		pending = stillDead.Paths()
	}

	res.Unresolved = pathset.New(pending...)
	return res, nil
}

// submit feeds pending to the worker pool in chunkSize batches, in input
// order. A failed batch is logged and forgotten here: the existence check
// afterwards is the only progress signal.
func (e *Executor) submit(ctx context.Context, pending []string, chunkSize int) error {
	jobs := make(chan []string)
	var wg sync.WaitGroup

	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for batch := range jobs {
				if err := e.deleter.Delete(ctx, batch); err != nil {
					logger.Debug("sweep: delete batch failed", "worker", id, "size", len(batch), "error", err)
				}
			}
		}(i)
	}

feed:
	for start := 0; start < len(pending); start += chunkSize {
		end := start + chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- pending[start:end]:
		}
	}

	close(jobs)
	wg.Wait()

	return ctx.Err()
}

// surviving returns the paths that still exist on disk, preserving input
// order. Checks fan out over the worker pool; the fan-in keeps order by
// index.
func (e *Executor) surviving(ctx context.Context, paths []string) ([]string, error) {
	present := make([]bool, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				present[idx] = e.exists(paths[idx])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []string
	for i, p := range paths {
		if present[i] {
			out = append(out, p)
		}
	}
	return out, nil
}
