package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/storesweep/pkg/pathset"
	"github.com/marmos91/storesweep/pkg/store/storetest"
)

// newTestExecutor builds an executor whose existence check reads the fake
// filesystem instead of the real one.
func newTestExecutor(t *testing.T, f *storetest.Fake, opts ExecutorOptions) *Executor {
	t.Helper()

	if opts.Strategy == "" {
		opts.Strategy = StrategyIterative
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.MaxWaves == 0 {
		opts.MaxWaves = DefaultMaxWaves
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	e, err := NewExecutor(f, NewSnapshotter(f), opts)
	require.NoError(t, err)
	e.exists = f.Exists
	return e
}

func seedDead(f *storetest.Fake, paths ...string) *pathset.Set {
	f.PutDisk(paths...)
	f.MarkDead(paths...)
	return pathset.New(paths...)
}

// ============================================================================
// Options
// ============================================================================

func TestParseStrategy(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s, err := ParseStrategy("quick")
		require.NoError(t, err)
		assert.Equal(t, StrategyQuick, s)

		s, err = ParseStrategy("iterative")
		require.NoError(t, err)
		assert.Equal(t, StrategyIterative, s)
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, in := range []string{"", "fast", "Quick", "iterative "} {
			_, err := ParseStrategy(in)
			assert.Error(t, err, "input %q", in)
		}
	})
}

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 32)
}

func TestNewExecutorValidation(t *testing.T) {
	f := storetest.New()
	snap := NewSnapshotter(f)

	tests := []struct {
		name string
		opts ExecutorOptions
	}{
		{"UnknownStrategy", ExecutorOptions{Strategy: "fast", Workers: 4, MaxWaves: 5, ChunkSize: 100}},
		{"ZeroWorkers", ExecutorOptions{Strategy: StrategyQuick, Workers: 0, MaxWaves: 5, ChunkSize: 100}},
		{"NegativeWorkers", ExecutorOptions{Strategy: StrategyQuick, Workers: -2, MaxWaves: 5, ChunkSize: 100}},
		{"ZeroMaxWaves", ExecutorOptions{Strategy: StrategyIterative, Workers: 4, MaxWaves: 0, ChunkSize: 100}},
		{"ZeroChunkSize", ExecutorOptions{Strategy: StrategyIterative, Workers: 4, MaxWaves: 5, ChunkSize: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor(f, snap, tt.opts)
			assert.Error(t, err)
		})
	}
}

// ============================================================================
// Quick strategy
// ============================================================================

func TestQuickStrategy(t *testing.T) {
	t.Run("DeletesEverythingInOnePass", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 3, res.Deleted)
		assert.True(t, res.Unresolved.IsEmpty())
		assert.Equal(t, 1, res.Waves)
		// Nothing survived, so no reclassification snapshot was needed.
		assert.Equal(t, 0, f.QueryCalls())
	})

	t.Run("EmptyInput", func(t *testing.T) {
		f := storetest.New()

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick})
		res, err := e.Execute(context.Background(), pathset.New(), pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 0, res.Deleted)
		assert.Equal(t, 0, res.Waves)
		assert.Empty(t, f.Submissions())
	})

	t.Run("SubmitsEachPathOnce", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c", "/store/d", "/store/e")
		f.RefuseDelete("/store/b", "/store/d")

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick, ChunkSize: 2})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 3, res.Deleted)
		assert.Equal(t, []string{"/store/b", "/store/d"}, res.Unresolved.Paths())

		submitted := 0
		for _, batch := range f.Submissions() {
			assert.LessOrEqual(t, len(batch), 2)
			submitted += len(batch)
		}
		assert.Equal(t, 5, submitted)
	})

	t.Run("SurvivorsReclassifiedExactlyOnce", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")
		f.RefuseDelete("/store/b", "/store/c")

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 1, res.Deleted)
		assert.Equal(t, 2, res.Unresolved.Len())
		assert.Equal(t, 1, f.QueryCalls())
	})

	t.Run("SurvivorTurnedAliveIsNotUnresolved", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")
		f.RefuseDelete("/store/b", "/store/c")
		f.BeforeSnapshot = func(call int) {
			f.MarkAlive("/store/b")
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick})
		alive := pathset.New()
		res, err := e.Execute(context.Background(), deletable, alive)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Deleted)
		assert.Equal(t, []string{"/store/c"}, res.Unresolved.Paths())
		assert.True(t, alive.Contains("/store/b"))
		assert.True(t, f.Exists("/store/b"))
	})

	t.Run("DeleteErrorsNotTrustedExistenceDecides", func(t *testing.T) {
		f := storetest.New()
		// Paths marked dead but never put on disk: every delete errors,
		// yet the existence check proves them gone.
		deletable := pathset.New("/store/a", "/store/b", "/store/c")
		f.FailDelete(errors.New("exit status 1"))

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 3, res.Deleted)
		assert.True(t, res.Unresolved.IsEmpty())
	})
}

// ============================================================================
// Iterative strategy
// ============================================================================

func TestIterativeStrategy(t *testing.T) {
	t.Run("ConvergesInOneWave", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b")

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 2, res.Deleted)
		assert.Equal(t, 1, res.Waves)
		assert.True(t, res.Unresolved.IsEmpty())
		assert.Equal(t, 0, f.QueryCalls())
	})

	t.Run("RetriesSurvivorsNextWave", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")
		f.RefuseDelete("/store/b")
		f.BeforeSnapshot = func(call int) {
			f.AllowDelete("/store/b")
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 3, res.Deleted)
		assert.Equal(t, 2, res.Waves)
		assert.True(t, res.Unresolved.IsEmpty())
	})

	t.Run("ZeroProgressShrinksBatchesToOne", func(t *testing.T) {
		f := storetest.New()
		paths := []string{"/store/a", "/store/b", "/store/c", "/store/d", "/store/e"}
		deletable := seedDead(f, paths...)
		f.RefuseDelete(paths...)
		f.BeforeSnapshot = func(call int) {
			f.AllowDelete(paths...)
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative, Workers: 1, ChunkSize: 3})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 5, res.Deleted)
		assert.Equal(t, 2, res.Waves)

		subs := f.Submissions()
		require.Len(t, subs, 7)
		// Wave 1 in chunks of 3, wave 2 one path at a time.
		assert.Len(t, subs[0], 3)
		assert.Len(t, subs[1], 2)
		for _, batch := range subs[2:] {
			assert.Len(t, batch, 1)
		}
	})

	t.Run("StopsEarlyWhenSinglePathBatchesMakeNoProgress", func(t *testing.T) {
		f := storetest.New()
		paths := []string{"/store/a", "/store/b", "/store/c", "/store/d", "/store/e"}
		deletable := seedDead(f, paths...)
		f.RefuseDelete(paths...)

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative, ChunkSize: 5})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		// Wave 1 at full chunk, wave 2 at chunk 1, then stop: retrying
		// identical single-path batches cannot go differently.
		assert.Equal(t, 0, res.Deleted)
		assert.Equal(t, 2, res.Waves)
		assert.Equal(t, 5, res.Unresolved.Len())
		// Only the reclassification between waves 1 and 2; the early stop
		// skips the final snapshot.
		assert.Equal(t, 1, f.QueryCalls())
	})

	t.Run("WaveBudgetBoundsRetries", func(t *testing.T) {
		f := storetest.New()
		paths := []string{"/store/a", "/store/b", "/store/c", "/store/d", "/store/e", "/store/f"}
		deletable := seedDead(f, paths...)
		f.RefuseDelete("/store/a", "/store/b", "/store/c", "/store/d", "/store/e")
		// One refusal lifts per wave, so every wave makes progress but
		// never finishes inside the budget.
		f.BeforeSnapshot = func(call int) {
			f.AllowDelete(paths[call])
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative, MaxWaves: 3})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)

		assert.Equal(t, 3, res.Waves)
		assert.Equal(t, 3, res.Deleted)
		assert.Equal(t, 3, res.Unresolved.Len())
	})

	t.Run("PathTurnedAliveIsSkippedForGood", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")
		f.RefuseDelete("/store/a", "/store/b")
		f.BeforeSnapshot = func(call int) {
			f.MarkAlive("/store/a")
			f.AllowDelete("/store/b")
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		alive := pathset.New()
		res, err := e.Execute(context.Background(), deletable, alive)
		require.NoError(t, err)

		assert.Equal(t, 2, res.Deleted)
		assert.True(t, res.Unresolved.IsEmpty())
		assert.True(t, alive.Contains("/store/a"))
		assert.True(t, f.Exists("/store/a"))

		// The now-alive path was submitted in wave 1 only, never again.
		occurrences := 0
		for _, batch := range f.Submissions() {
			for _, p := range batch {
				if p == "/store/a" {
					occurrences++
				}
			}
		}
		assert.Equal(t, 1, occurrences)
	})

	t.Run("RetriesOnlyPathsProvenDeadByFreshSnapshot", func(t *testing.T) {
		f := storetest.New()
		paths := []string{"/store/a", "/store/b", "/store/c", "/store/d"}
		deletable := seedDead(f, paths...)
		f.RefuseDelete(paths...)
		f.BeforeSnapshot = func(call int) {
			f.MarkAlive("/store/c", "/store/d")
			f.AllowDelete(paths...)
		}

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.NoError(t, err)
		require.NotEmpty(t, f.Snapshots())

		// Every retried batch is covered by the snapshot that preceded it.
		snapshot := pathset.New(f.Snapshots()[0]...)
		waveOneSize := deletable.Len()
		seen := 0
		for _, batch := range f.Submissions() {
			for _, p := range batch {
				seen++
				if seen <= waveOneSize {
					continue
				}
				assert.True(t, snapshot.Contains(p), "retried path %s missing from authorizing snapshot", p)
			}
		}
		assert.Equal(t, 2, res.Deleted)
	})

	t.Run("SnapshotFailureLeavesSurvivorsUnresolved", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b")
		f.RefuseDelete("/store/a")
		f.FailQueryDead(errors.New("store offline"))

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		res, err := e.Execute(context.Background(), deletable, pathset.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "liveness query failed")

		assert.Equal(t, []string{"/store/a"}, res.Unresolved.Paths())
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		f := storetest.New()
		deletable := seedDead(f, "/store/a", "/store/b", "/store/c")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyIterative})
		res, err := e.Execute(ctx, deletable, pathset.New())
		require.ErrorIs(t, err, context.Canceled)

		// Unchecked paths are reported unresolved, never assumed deleted.
		assert.Equal(t, 0, res.Deleted)
		assert.Equal(t, 3, res.Unresolved.Len())
	})
}

// ============================================================================
// Submission mechanics
// ============================================================================

func TestSubmitOrdering(t *testing.T) {
	f := storetest.New()
	paths := []string{"/store/a", "/store/b", "/store/c", "/store/d", "/store/e"}
	deletable := seedDead(f, paths...)

	// A single worker makes batch order observable.
	e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick, Workers: 1, ChunkSize: 2})
	_, err := e.Execute(context.Background(), deletable, pathset.New())
	require.NoError(t, err)

	subs := f.Submissions()
	require.Len(t, subs, 3)
	assert.Equal(t, []string{"/store/a", "/store/b"}, subs[0])
	assert.Equal(t, []string{"/store/c", "/store/d"}, subs[1])
	assert.Equal(t, []string{"/store/e"}, subs[2])
}

func TestSurvivingPreservesOrder(t *testing.T) {
	f := storetest.New()
	f.PutDisk("/store/e", "/store/a", "/store/c")

	e := newTestExecutor(t, f, ExecutorOptions{Strategy: StrategyQuick, Workers: 8})
	got, err := e.surviving(context.Background(), []string{"/store/a", "/store/b", "/store/c", "/store/d", "/store/e"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/store/a", "/store/c", "/store/e"}, got)
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkExecutorQuick(b *testing.B) {
	paths := make([]string, 1000)
	for i := range paths {
		paths[i] = fmt.Sprintf("/store/%08d-pkg", i)
	}

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		f := storetest.New()
		f.PutDisk(paths...)
		f.MarkDead(paths...)
		e, _ := NewExecutor(f, NewSnapshotter(f), ExecutorOptions{
			Strategy: StrategyQuick, Workers: 8, MaxWaves: 5, ChunkSize: 100,
		})
		e.exists = f.Exists
		b.StartTimer()

		if _, err := e.Execute(context.Background(), pathset.New(paths...), pathset.New()); err != nil {
			b.Fatal(err)
		}
	}
}
