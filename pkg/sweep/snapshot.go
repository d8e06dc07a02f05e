package sweep

import (
	"context"
	"fmt"

	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/pkg/pathset"
	"github.com/marmos91/storesweep/pkg/store"
)

// Snapshotter produces point-in-time liveness snapshots. A snapshot is only
// a fact about the instant it was taken: liveness can change the moment the
// query returns, so every retry wave takes a new one instead of reusing an
// old answer.
type Snapshotter struct {
	oracle store.LivenessOracle
}

// NewSnapshotter creates a snapshot provider over the store's oracle.
func NewSnapshotter(oracle store.LivenessOracle) *Snapshotter {
	return &Snapshotter{oracle: oracle}
}

// Snapshot returns the set of paths the store can currently prove dead,
// deduplicated, in oracle output order. An oracle failure is returned as an
// error: "could not ask" must never be treated as "nothing is dead", since
// the empty set would classify every candidate as alive and silently skip
// the whole sweep.
func (s *Snapshotter) Snapshot(ctx context.Context) (*pathset.Set, error) {
	dead, err := s.oracle.QueryDead(ctx)
	if err != nil {
		return nil, fmt.Errorf("liveness query failed: %w", err)
	}

	snap := pathset.New(dead...)
	logger.Debug("sweep: liveness snapshot taken", "dead", snap.Len())
	return snap, nil
}
