// Package metrics exports run metrics for the node_exporter textfile
// collector. storesweep is a batch job with no process to scrape, so after
// each run it rewrites a single .prom file describing that run; the
// collector picks it up on the node_exporter's next scrape.
package metrics

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/storesweep/pkg/sweep"
)

// TextfileName is the file written into the collector directory.
const TextfileName = "storesweep.prom"

// TextfileRecorder writes run metrics as a Prometheus textfile. Implements
// sweep.Recorder.
//
// Each run builds a private registry from scratch: textfile metrics describe
// the last run, not a cumulative series, and a private registry guarantees
// no state leaks between runs or tests.
type TextfileRecorder struct {
	dir string

	// write is swapped out by tests.
	write func(path string, g prometheus.Gatherer) error
}

// NewTextfileRecorder creates a recorder writing into the given textfile
// collector directory.
func NewTextfileRecorder(dir string) *TextfileRecorder {
	return &TextfileRecorder{
		dir:   dir,
		write: prometheus.WriteToTextfile,
	}
}

// Path returns the full path of the textfile this recorder writes.
func (r *TextfileRecorder) Path() string {
	return filepath.Join(r.dir, TextfileName)
}

// Record writes the run's metrics. WriteToTextfile writes to a temp file
// and renames, so the collector never sees a partial file.
func (r *TextfileRecorder) Record(ctx context.Context, res *sweep.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	runLabels := prometheus.Labels{
		"mode":     res.Mode,
		"strategy": res.Strategy,
	}

	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        help,
			ConstLabels: runLabels,
		})
		g.Set(value)
		reg.MustRegister(g)
	}

	gauge("storesweep_last_run_timestamp_seconds",
		"Start time of the last sweep run as a Unix timestamp.",
		float64(res.Started.Unix()))
	gauge("storesweep_last_run_candidates",
		"Candidate paths considered by the last sweep run.",
		float64(res.Candidates))
	gauge("storesweep_last_run_alive_skipped",
		"Candidate paths skipped as alive by the last sweep run.",
		float64(res.AliveSkipped))
	gauge("storesweep_last_run_deleted",
		"Paths deleted by the last sweep run.",
		float64(res.Deleted))
	gauge("storesweep_last_run_unresolved",
		"Dead paths the last sweep run could not delete.",
		float64(res.Unresolved))
	gauge("storesweep_last_run_waves",
		"Deletion waves executed by the last sweep run.",
		float64(res.Waves))
	gauge("storesweep_last_run_freed_bytes",
		"Estimated bytes freed by the last sweep run.",
		float64(res.FreedBytes))

	stages := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "storesweep_last_run_stage_duration_seconds",
		Help:        "Wall-clock duration of each pipeline stage in the last sweep run.",
		ConstLabels: runLabels,
	}, []string{"stage"})
	stages.WithLabelValues("discover").Set(res.Durations.Discover.Seconds())
	stages.WithLabelValues("classify").Set(res.Durations.Classify.Seconds())
	stages.WithLabelValues("delete").Set(res.Durations.Delete.Seconds())
	stages.WithLabelValues("compact").Set(res.Durations.Compact.Seconds())
	stages.WithLabelValues("total").Set(res.Durations.Total.Seconds())
	reg.MustRegister(stages)

	if err := r.write(r.Path(), reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
