package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/internal/bytesize"
	"github.com/marmos91/storesweep/internal/cli/timeutil"
	"github.com/marmos91/storesweep/pkg/config"
	"github.com/marmos91/storesweep/pkg/journal"
	"github.com/marmos91/storesweep/pkg/sweep"
)

var (
	historyLimit     int
	historyPruneKeep int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past sweep runs",
	Long: `List past sweep runs recorded in the local journal, newest first.

The journal is written after every non-dry run when journal.enabled is set
in the configuration.

Examples:
  # Last 20 runs
  storesweep history

  # Everything, as JSON
  storesweep history --limit 0 -o json`,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries",
	Long: `Delete the oldest journal entries, keeping the most recent ones.

The number kept defaults to journal.keep from the configuration.

Examples:
  # Keep the configured number of runs
  storesweep history prune

  # Keep only the last 10 runs
  storesweep history prune --keep 10`,
	RunE: runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show (0 shows all)")
	historyPruneCmd.Flags().IntVar(&historyPruneKeep, "keep", 0, "Runs to keep (default: journal.keep from config)")
	historyCmd.AddCommand(historyPruneCmd)
}

// historyList renders journal entries as a table.
type historyList []sweep.Result

// Headers implements TableRenderer.
func (hl historyList) Headers() []string {
	return []string{"STARTED", "AGE", "MODE", "STRATEGY", "CANDIDATES", "DELETED", "UNRESOLVED", "FREED", "DURATION"}
}

// Rows implements TableRenderer.
func (hl historyList) Rows() [][]string {
	rows := make([][]string, 0, len(hl))
	for _, r := range hl {
		mode := r.Mode
		if r.DryRun {
			mode += " (dry)"
		}
		rows = append(rows, []string{
			timeutil.FormatTime(r.Started),
			timeutil.Ago(r.Started),
			mode,
			r.Strategy,
			fmt.Sprintf("%d", r.Candidates),
			fmt.Sprintf("%d", r.Deleted),
			fmt.Sprintf("%d", r.Unresolved),
			bytesize.ByteSize(r.FreedBytes).String(),
			r.Durations.Total.Round(time.Millisecond).String(),
		})
	}
	return rows
}

// openJournal loads config and opens the journal it points at.
func openJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	j, err := journal.Open(journal.Options{
		Path:            cfg.Journal.Path,
		MaxValueLogSize: int64(cfg.Journal.MaxSize.Uint64()),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, cfg, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	printer, err := getPrinter()
	if err != nil {
		return err
	}

	j, _, err := openJournal()
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	runs, err := j.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		printer.Println("No recorded runs.")
		return nil
	}

	return printer.Print(historyList(runs))
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	j, cfg, err := openJournal()
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	keep := historyPruneKeep
	if !cmd.Flags().Changed("keep") {
		keep = cfg.Journal.Keep
	}
	if keep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}

	removed, err := j.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s), keeping the latest %d.\n", removed, keep)
	return nil
}
