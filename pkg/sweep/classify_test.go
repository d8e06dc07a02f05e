package sweep

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/storesweep/pkg/pathset"
)

// ============================================================================
// Classification
// ============================================================================

func TestClassify(t *testing.T) {
	t.Run("PartitionsCandidates", func(t *testing.T) {
		candidates := pathset.New("/store/a", "/store/b", "/store/c", "/store/d")
		snapshot := pathset.New("/store/b", "/store/d", "/store/zz")

		deletable, alive := Classify(candidates, snapshot)

		assert.Equal(t, []string{"/store/b", "/store/d"}, deletable.Paths())
		assert.Equal(t, []string{"/store/a", "/store/c"}, alive.Paths())
	})

	t.Run("EveryCandidateLandsExactlyOnce", func(t *testing.T) {
		candidates := pathset.New("/store/a", "/store/b", "/store/c")
		snapshot := pathset.New("/store/b")

		deletable, alive := Classify(candidates, snapshot)

		require.Equal(t, candidates.Len(), deletable.Len()+alive.Len())
		for _, p := range candidates.Paths() {
			inDeletable := deletable.Contains(p)
			inAlive := alive.Contains(p)
			assert.True(t, inDeletable != inAlive, "path %s must be in exactly one partition", p)
		}
	})

	t.Run("PreservesCandidateOrder", func(t *testing.T) {
		candidates := pathset.New("/store/z", "/store/a", "/store/m", "/store/b")
		snapshot := pathset.New("/store/b", "/store/a", "/store/z", "/store/m")

		deletable, _ := Classify(candidates, snapshot)

		assert.Equal(t, []string{"/store/z", "/store/a", "/store/m", "/store/b"}, deletable.Paths())
	})

	t.Run("EmptySnapshotMeansEverythingAlive", func(t *testing.T) {
		candidates := pathset.New("/store/a", "/store/b")

		deletable, alive := Classify(candidates, pathset.New())

		assert.True(t, deletable.IsEmpty())
		assert.Equal(t, 2, alive.Len())
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		deletable, alive := Classify(pathset.New(), pathset.New("/store/a"))

		assert.True(t, deletable.IsEmpty())
		assert.True(t, alive.IsEmpty())
	})

	t.Run("ExactStringMatchOnly", func(t *testing.T) {
		candidates := pathset.New("/store/a", "/store/a/", "/store/A")
		snapshot := pathset.New("/store/a")

		deletable, alive := Classify(candidates, snapshot)

		assert.Equal(t, []string{"/store/a"}, deletable.Paths())
		assert.Equal(t, []string{"/store/a/", "/store/A"}, alive.Paths())
	})

	t.Run("RepeatedCallsAgree", func(t *testing.T) {
		candidates := pathset.New("/store/a", "/store/b", "/store/c")
		snapshot := pathset.New("/store/c", "/store/a")

		d1, a1 := Classify(candidates, snapshot)
		d2, a2 := Classify(candidates, snapshot)

		assert.Equal(t, d1.Paths(), d2.Paths())
		assert.Equal(t, a1.Paths(), a2.Paths())
		assert.Equal(t, 3, candidates.Len())
		assert.Equal(t, 2, snapshot.Len())
	})
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkClassify(b *testing.B) {
	candidates := pathset.New()
	snapshot := pathset.New()
	for i := 0; i < 10000; i++ {
		p := fmt.Sprintf("/store/%08d-pkg", i)
		candidates.Add(p)
		if i%2 == 0 {
			snapshot.Add(p)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Classify(candidates, snapshot)
	}
}
