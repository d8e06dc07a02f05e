package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for sweep and store operations. Pipeline stage keys use
// the "sweep." prefix, store control command keys use "store.".
const (
	// ========================================================================
	// Sweep run attributes
	// ========================================================================
	AttrRunID        = "sweep.run_id"
	AttrMode         = "sweep.mode"
	AttrStrategy     = "sweep.strategy"
	AttrDryRun       = "sweep.dry_run"
	AttrWave         = "sweep.wave"
	AttrCandidates   = "sweep.candidates"
	AttrAliveSkipped = "sweep.alive_skipped"
	AttrDeleted      = "sweep.deleted"
	AttrUnresolved   = "sweep.unresolved"
	AttrBatchSize    = "sweep.batch_size"

	// ========================================================================
	// Store control attributes
	// ========================================================================
	AttrStoreRoot    = "store.root"
	AttrStorePath    = "store.path"
	AttrStorePackage = "store.package"
	AttrStoreCommand = "store.command"
	AttrDeadPaths    = "store.dead_paths"
)

// Span names.
// Format: sweep.<stage> for pipeline stages, store.<command> for store
// control invocations.
const (
	// Root span covering one pipeline invocation
	SpanRun = "sweep.run"

	// Pipeline stages
	SpanDiscover = "sweep.discover"
	SpanClassify = "sweep.classify"
	SpanDelete   = "sweep.delete"
	SpanCompact  = "sweep.compact"

	// Store control commands
	SpanQueryDead = "store.query_dead"
	SpanResolve   = "store.resolve"
	SpanClosure   = "store.referrers_closure"
)

// RunID returns an attribute for the sweep run identifier
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Mode returns an attribute for the candidate selection mode
func Mode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// Strategy returns an attribute for the deletion strategy
func Strategy(strategy string) attribute.KeyValue {
	return attribute.String(AttrStrategy, strategy)
}

// DryRun returns an attribute for the dry-run flag
func DryRun(dry bool) attribute.KeyValue {
	return attribute.Bool(AttrDryRun, dry)
}

// Wave returns an attribute for the deletion wave number
func Wave(n int) attribute.KeyValue {
	return attribute.Int(AttrWave, n)
}

// Candidates returns an attribute for the candidate count
func Candidates(n int) attribute.KeyValue {
	return attribute.Int(AttrCandidates, n)
}

// AliveSkipped returns an attribute for the alive-skipped count
func AliveSkipped(n int) attribute.KeyValue {
	return attribute.Int(AttrAliveSkipped, n)
}

// Deleted returns an attribute for the verified-deleted count
func Deleted(n int) attribute.KeyValue {
	return attribute.Int(AttrDeleted, n)
}

// Unresolved returns an attribute for the unresolved count
func Unresolved(n int) attribute.KeyValue {
	return attribute.Int(AttrUnresolved, n)
}

// BatchSize returns an attribute for the delete batch size
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// StoreRoot returns an attribute for the store root directory
func StoreRoot(root string) attribute.KeyValue {
	return attribute.String(AttrStoreRoot, root)
}

// StorePath returns an attribute for a store path
func StorePath(path string) attribute.KeyValue {
	return attribute.String(AttrStorePath, path)
}

// StorePackage returns an attribute for a package name
func StorePackage(name string) attribute.KeyValue {
	return attribute.String(AttrStorePackage, name)
}

// StoreCommand returns an attribute for a store control command line
func StoreCommand(cmd string) attribute.KeyValue {
	return attribute.String(AttrStoreCommand, cmd)
}

// DeadPaths returns an attribute for the size of a liveness snapshot
func DeadPaths(n int) attribute.KeyValue {
	return attribute.Int(AttrDeadPaths, n)
}

// StartStageSpan starts a span for a pipeline stage under the current run
// span.
func StartStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, stage, trace.WithAttributes(attrs...))
}

// StartRunSpan starts the root span for one sweep invocation.
func StartRunSpan(ctx context.Context, runID, mode, strategy string, dryRun bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRun, trace.WithAttributes(
		RunID(runID),
		Mode(mode),
		Strategy(strategy),
		DryRun(dryRun),
	))
}
