package sweep

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/pkg/pathset"
	"github.com/marmos91/storesweep/pkg/store"
)

// Selector chooses which store paths a sweep considers. Exactly one of the
// four modes must be set; anything else is a usage error caught before any
// store call happens.
type Selector struct {
	// All selects every entry directly under the store root.
	All bool

	// OlderThan selects dead paths whose modification age exceeds the
	// given threshold, written as "<days>d" (e.g. "30d").
	OlderThan string

	// Paths selects the literal paths, taken as given.
	Paths []string

	// Package selects a package's store path plus its referrer closure.
	Package string
}

// agePattern accepts a non-negative integer day count with a "d" suffix and
// nothing else. Hours or weeks would invite silent unit mistakes on a
// command that deletes data.
var agePattern = regexp.MustCompile(`^([0-9]+)d$`)

// ParseAge converts an age threshold like "30d" into a duration.
func ParseAge(s string) (time.Duration, error) {
	m := agePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid age %q: expected <days>d, e.g. 30d", s)
	}

	days, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}

	return time.Duration(days) * 24 * time.Hour, nil
}

// Mode returns the selector's label for summaries and the run journal.
func (sel Selector) Mode() string {
	switch {
	case sel.All:
		return "all"
	case sel.OlderThan != "":
		return "older-than"
	case len(sel.Paths) > 0:
		return "paths"
	case sel.Package != "":
		return "closure"
	default:
		return "none"
	}
}

// Validate checks selector arity and eagerly parses the age threshold, so a
// malformed invocation fails before the first store call.
func (sel Selector) Validate() error {
	chosen := 0
	if sel.All {
		chosen++
	}
	if sel.OlderThan != "" {
		chosen++
	}
	if len(sel.Paths) > 0 {
		chosen++
	}
	if sel.Package != "" {
		chosen++
	}

	if chosen != 1 {
		return fmt.Errorf("exactly one selection mode required (whole store, age threshold, explicit paths, or package), got %d", chosen)
	}

	if sel.OlderThan != "" {
		if _, err := ParseAge(sel.OlderThan); err != nil {
			return err
		}
	}

	return nil
}

// Builder discovers candidate paths for a sweep.
type Builder struct {
	root        string
	snapshotter *Snapshotter
	resolver    store.PackageResolver
	oracle      store.LivenessOracle

	// now and stat are swapped out by tests.
	now  func() time.Time
	stat func(path string) (fs.FileInfo, error)
}

// NewBuilder creates a candidate builder for the store rooted at root.
func NewBuilder(root string, oracle store.LivenessOracle, resolver store.PackageResolver) *Builder {
	return &Builder{
		root:        root,
		snapshotter: NewSnapshotter(oracle),
		resolver:    resolver,
		oracle:      oracle,
		now:         time.Now,
		stat:        os.Lstat,
	}
}

// Build returns the candidate set for the selector. The set is deduplicated
// and ordered by discovery; no liveness judgement is made here.
func (b *Builder) Build(ctx context.Context, sel Selector) (*pathset.Set, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	switch {
	case sel.All:
		return b.buildWholeStore()
	case sel.OlderThan != "":
		return b.buildOlderThan(ctx, sel.OlderThan)
	case len(sel.Paths) > 0:
		return pathset.New(sel.Paths...), nil
	default:
		return b.buildClosure(ctx, sel.Package)
	}
}

// buildWholeStore lists one directory level under the store root. Every
// entry counts, dotfiles included; the classifier decides what survives.
func (b *Builder) buildWholeStore() (*pathset.Set, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store root %s: %w", b.root, err)
	}

	set := pathset.New()
	for _, entry := range entries {
		set.Add(filepath.Join(b.root, entry.Name()))
	}

	logger.Debug("sweep: whole-store candidates", "root", b.root, "count", set.Len())
	return set, nil
}

// buildOlderThan takes a liveness snapshot first and stats only dead paths:
// the dead set is usually a small fraction of the store, so liveness-first
// bounds the stat cost.
func (b *Builder) buildOlderThan(ctx context.Context, age string) (*pathset.Set, error) {
	threshold, err := ParseAge(age)
	if err != nil {
		return nil, err
	}

	snap, err := b.snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	set := pathset.New()
	for _, p := range snap.Paths() {
		info, err := b.stat(p)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("sweep: cannot stat candidate, skipping", "path", p, "error", err)
			}
			continue
		}
		if now.Sub(info.ModTime()) > threshold {
			set.Add(p)
		}
	}

	logger.Debug("sweep: age-filtered candidates", "age", age, "dead", snap.Len(), "kept", set.Len())
	return set, nil
}

// buildClosure resolves the package name and expands it to every path that
// transitively refers to it. Deleting the closure together is what makes
// removing a deeply shared package feasible in one run.
func (b *Builder) buildClosure(ctx context.Context, name string) (*pathset.Set, error) {
	path, err := b.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package %s: %w", name, err)
	}
	if path == "" {
		return nil, &store.NotFoundError{Kind: "package", Name: name}
	}

	closure, err := b.oracle.ReferrersClosure(ctx, path)
	if err != nil {
		return nil, &store.NotFoundError{Kind: "path", Name: path, Err: err}
	}

	set := pathset.New(path)
	set.AddAll(closure...)

	logger.Debug("sweep: closure candidates", "package", name, "path", path, "count", set.Len())
	return set, nil
}
