// Package storetest provides an in-memory store.Store implementation for
// tests. It models the two facts the pipeline cares about separately: what
// is on disk, and what the store currently considers dead. Tests mutate
// either side between snapshots to reproduce races the real store exhibits.
package storetest

import (
	"context"
	"fmt"
	"sync"
)

// Fake implements store.Store against in-memory state.
//
// The zero value is not usable; call New.
type Fake struct {
	mu       sync.Mutex
	disk     map[string]bool
	dead     []string
	deadSet  map[string]bool
	closures map[string][]string
	packages map[string]string
	refuse   map[string]bool

	queryErr  error
	deleteErr error
	gcErr     error

	queryCalls  int
	gcCalls     int
	submissions [][]string
	snapshots   [][]string

	// BeforeSnapshot, when set, runs before each QueryDead with the
	// zero-based call number. Tests use it to flip liveness between waves.
	BeforeSnapshot func(call int)
}

// New returns an empty fake store.
func New() *Fake {
	return &Fake{
		disk:     make(map[string]bool),
		deadSet:  make(map[string]bool),
		closures: make(map[string][]string),
		packages: make(map[string]string),
		refuse:   make(map[string]bool),
	}
}

// ============================================================================
// Test setup
// ============================================================================

// PutDisk creates paths on the fake filesystem. Paths start out alive;
// use MarkDead to make the oracle report them.
func (f *Fake) PutDisk(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		f.disk[p] = true
	}
}

// MarkDead adds paths to the oracle's dead answer, preserving the order of
// first marking.
func (f *Fake) MarkDead(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if !f.deadSet[p] {
			f.deadSet[p] = true
			f.dead = append(f.dead, p)
		}
	}
}

// MarkAlive removes paths from the oracle's dead answer, modeling a new
// root appearing between snapshots.
func (f *Fake) MarkAlive(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if f.deadSet[p] {
			delete(f.deadSet, p)
			f.dead = remove(f.dead, p)
		}
	}
}

// RefuseDelete makes Delete silently leave the given paths on disk, the
// way a store refuses paths pinned by an in-flight operation.
func (f *Fake) RefuseDelete(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		f.refuse[p] = true
	}
}

// AllowDelete clears a previous RefuseDelete.
func (f *Fake) AllowDelete(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.refuse, p)
	}
}

// SetClosure records the referrer closure answer for path.
func (f *Fake) SetClosure(path string, closure ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closures[path] = append([]string(nil), closure...)
}

// SetPackage maps a package name to its store path.
func (f *Fake) SetPackage(name, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packages[name] = path
}

// FailQueryDead makes every subsequent QueryDead return err.
func (f *Fake) FailQueryDead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

// FailDelete makes every subsequent Delete return err without touching disk.
func (f *Fake) FailDelete(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// FailGC makes CollectGarbage return err.
func (f *Fake) FailGC(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gcErr = err
}

// ============================================================================
// Test observation
// ============================================================================

// Exists reports whether the path is on the fake filesystem. Executor tests
// wire this in as the existence check.
func (f *Fake) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disk[path]
}

// QueryCalls returns how many snapshots were taken.
func (f *Fake) QueryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// GCCalls returns how many times CollectGarbage ran.
func (f *Fake) GCCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gcCalls
}

// Submissions returns every Delete batch in submission order.
func (f *Fake) Submissions() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.submissions))
	for i, batch := range f.submissions {
		out[i] = append([]string(nil), batch...)
	}
	return out
}

// Snapshots returns the answer of every QueryDead call in order.
func (f *Fake) Snapshots() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.snapshots))
	for i, snap := range f.snapshots {
		out[i] = append([]string(nil), snap...)
	}
	return out
}

// ============================================================================
// store.Store implementation
// ============================================================================

// QueryDead returns the dead paths still present on disk, in marking order.
func (f *Fake) QueryDead(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	call := f.queryCalls
	f.queryCalls++
	hook := f.BeforeSnapshot
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var result []string
	for _, p := range f.dead {
		if f.disk[p] {
			result = append(result, p)
		}
	}
	f.snapshots = append(f.snapshots, append([]string(nil), result...))
	return result, nil
}

// ReferrersClosure returns the configured closure or fails for unknown paths.
func (f *Fake) ReferrersClosure(ctx context.Context, path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	closure, ok := f.closures[path]
	if !ok {
		return nil, fmt.Errorf("path %s is not valid", path)
	}
	return append([]string(nil), closure...), nil
}

// Delete removes paths from disk except those set to be refused.
func (f *Fake) Delete(ctx context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submissions = append(f.submissions, append([]string(nil), paths...))

	if f.deleteErr != nil {
		return f.deleteErr
	}

	for _, p := range paths {
		if !f.refuse[p] {
			delete(f.disk, p)
		}
	}
	return nil
}

// Resolve returns the configured path for name, or empty when unknown.
func (f *Fake) Resolve(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.packages[name], nil
}

// CollectGarbage counts invocations.
func (f *Fake) CollectGarbage(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gcErr != nil {
		return f.gcErr
	}
	f.gcCalls++
	return nil
}

func remove(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
