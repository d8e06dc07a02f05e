// Package journal persists a local history of completed sweep runs in an
// embedded BadgerDB database. The journal is a reporting artifact: it is
// written after the summary, its failures are logged but never fail a
// sweep, and pruning it has no effect on the store.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/storesweep/pkg/sweep"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so runs are stored under prefixed keys:
//
// Data Type   Prefix   Key Format                        Value Type
// =====================================================================
// Run Record  "run:"   run:<started-nanos-20d>:<run-id>  sweep.Result (JSON)
// Run Index   "id:"    id:<run-id>                       run key (bytes)
//
// The zero-padded start timestamp makes lexicographic key order equal
// chronological order, so listing newest-first is a reverse prefix scan and
// pruning oldest-first is a forward one. The id index gives O(1) lookup by
// run ID without scanning.

const (
	prefixRun = "run:"
	prefixID  = "id:"
)

// keyRun generates the time-ordered key for a run record.
func keyRun(startedNanos int64, runID string) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", prefixRun, startedNanos, runID)
}

// keyID generates the index key for lookup by run ID.
func keyID(runID string) []byte {
	return []byte(prefixID + runID)
}

// ErrNotFound is returned when a run ID is not in the journal.
var ErrNotFound = errors.New("run not found in journal")

// Options configures the journal database.
type Options struct {
	// Path is the database directory, created if missing.
	Path string

	// MaxValueLogSize bounds a single Badger value log file. Zero keeps
	// the Badger default, which is far larger than a journal ever needs.
	MaxValueLogSize int64

	// InMemory runs the database without touching disk. Tests only.
	InMemory bool
}

// Journal is a Badger-backed run history. Safe for concurrent use; a single
// sweep invocation only ever writes one record.
type Journal struct {
	db *badgerdb.DB
}

// Open opens (creating if necessary) the journal database at opts.Path.
func Open(opts Options) (*Journal, error) {
	var badgerOpts badgerdb.Options
	if opts.InMemory {
		badgerOpts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		badgerOpts = badgerdb.DefaultOptions(opts.Path)
	}

	// Badger logs to stdout by default, which would corrupt the summary
	// stream.
	badgerOpts = badgerOpts.WithLogger(nil)

	if opts.MaxValueLogSize > 0 {
		badgerOpts = badgerOpts.WithValueLogFileSize(opts.MaxValueLogSize)
	}

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", opts.Path, err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database. The journal is unusable afterwards.
func (j *Journal) Close() error {
	return j.db.Close()
}

// ============================================================================
// Writing
// ============================================================================

// Record stores a completed run. Implements sweep.Recorder.
func (j *Journal) Record(ctx context.Context, res *sweep.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.RunID == "" {
		return errors.New("run record has no ID")
	}

	value, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}

	runKey := keyRun(res.Started.UnixNano(), res.RunID)

	err = j.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(runKey, value); err != nil {
			return err
		}
		return txn.Set(keyID(res.RunID), runKey)
	})
	if err != nil {
		return fmt.Errorf("failed to store run record: %w", err)
	}
	return nil
}

// ============================================================================
// Reading
// ============================================================================

// Get returns the record for a run ID, or ErrNotFound.
func (j *Journal) Get(ctx context.Context, runID string) (*sweep.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var res *sweep.Result

	err := j.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyID(runID))
		if err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var runKey []byte
		if err := item.Value(func(val []byte) error {
			runKey = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get(runKey)
		if err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			res = &sweep.Result{}
			return json.Unmarshal(val, res)
		})
	})

	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}
	return res, nil
}

// List returns up to limit runs, newest first. A non-positive limit returns
// every run.
func (j *Journal) List(ctx context.Context, limit int) ([]sweep.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []sweep.Result

	err := j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRun)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix range.
		seek := append([]byte(prefixRun), 0xff)

		for it.Seek(seek); it.ValidForPrefix([]byte(prefixRun)); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			var res sweep.Result
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &res)
			}); err != nil {
				return err
			}
			runs = append(runs, res)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	return runs, nil
}

// Count returns the number of recorded runs.
func (j *Journal) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRun)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(prefixRun)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count run records: %w", err)
	}
	return count, nil
}

// ============================================================================
// Pruning
// ============================================================================

// Prune deletes the oldest runs until at most keep remain, returning how
// many were removed. keep <= 0 removes everything.
func (j *Journal) Prune(ctx context.Context, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total, err := j.Count(ctx)
	if err != nil {
		return 0, err
	}

	excess := total - keep
	if keep <= 0 {
		excess = total
	}
	if excess <= 0 {
		return 0, nil
	}

	removed := 0
	err = j.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRun)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(prefixRun)) && removed < excess; it.Next() {
			item := it.Item()
			runKey := item.KeyCopy(nil)

			var runID string
			if err := item.Value(func(val []byte) error {
				var res sweep.Result
				if err := json.Unmarshal(val, &res); err != nil {
					return err
				}
				runID = res.RunID
				return nil
			}); err != nil {
				return err
			}

			if err := txn.Delete(runKey); err != nil {
				return err
			}
			if err := txn.Delete(keyID(runID)); err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to prune run records: %w", err)
	}
	return removed, nil
}
