// Package store defines the contract between the sweep pipeline and the
// content-addressed store that owns the data. The pipeline never decides
// liveness and never unlinks files itself: it asks the store which paths are
// provably unreferenced and tells the store which paths to drop. The real
// implementation shells out to the store control binary; pkg/store/storetest
// provides an in-memory fake for tests.
package store

import "context"

// LivenessOracle answers point-in-time liveness questions. Answers are only
// valid as of the moment they are produced; callers that retry must ask
// again rather than reuse an old answer.
type LivenessOracle interface {
	// QueryDead returns every path the store can prove is unreferenced,
	// in the store's own output order. Requires privileges.
	QueryDead(ctx context.Context) ([]string, error)

	// ReferrersClosure returns the set of paths that transitively refer
	// to path. Fails when the store does not know the path.
	ReferrersClosure(ctx context.Context, path string) ([]string, error)
}

// Deleter removes paths from the store. Requires privileges.
//
// A nil error means the store accepted the batch, not that every path is
// gone: callers must check the filesystem for the outcome.
type Deleter interface {
	Delete(ctx context.Context, paths []string) error
}

// PackageResolver maps a human package name to its store path.
// An empty path with a nil error means the name is unknown.
type PackageResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Compactor triggers the store's own garbage collection, reclaiming
// internal bookkeeping space after deletions. Requires privileges.
type Compactor interface {
	CollectGarbage(ctx context.Context) error
}

// Store aggregates every capability the sweep pipeline needs.
type Store interface {
	LivenessOracle
	Deleter
	PackageResolver
	Compactor
}
