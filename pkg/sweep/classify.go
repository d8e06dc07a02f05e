package sweep

import "github.com/marmos91/storesweep/pkg/pathset"

// Classify partitions candidates into deletable and alive against one
// liveness snapshot. Every candidate lands in exactly one output; both
// outputs preserve candidate order; membership is exact string equality.
// Pure by construction: no I/O, no clock, no store — which is what lets
// the executor call it again against fresh snapshots between waves.
func Classify(candidates, snapshot *pathset.Set) (deletable, alive *pathset.Set) {
	deletable = pathset.New()
	alive = pathset.New()

	for _, p := range candidates.Paths() {
		if snapshot.Contains(p) {
			deletable.Add(p)
		} else {
			alive.Add(p)
		}
	}

	return deletable, alive
}
