package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/internal/cli/output"
	"github.com/marmos91/storesweep/pkg/sweep"
)

var deadOlderThan string

var deadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List dead store paths without deleting anything",
	Long: `Query the store's liveness oracle and list every path it can prove is
unreachable from any root. Nothing is deleted; this is the read-only view
of what "storesweep run" would consider deletable.

Examples:
  # All currently dead paths
  storesweep dead

  # Dead paths untouched for more than 90 days, as JSON
  storesweep dead --older-than 90d -o json`,
	RunE: runDead,
}

func init() {
	deadCmd.Flags().StringVar(&deadOlderThan, "older-than", "", "Only paths not modified for more than this, e.g. 90d")
}

// deadList renders dead paths as a table.
type deadList []string

// Headers implements TableRenderer.
func (dl deadList) Headers() []string {
	return []string{"PATH"}
}

// Rows implements TableRenderer.
func (dl deadList) Rows() [][]string {
	rows := make([][]string, 0, len(dl))
	for _, p := range dl {
		rows = append(rows, []string{p})
	}
	return rows
}

func runDead(cmd *cobra.Command, args []string) error {
	printer, err := getPrinter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := buildStore(cfg)
	ctx := cmd.Context()

	paths, err := func() ([]string, error) {
		if deadOlderThan != "" {
			builder := sweep.NewBuilder(cfg.Store.Root, st, st)
			set, err := builder.Build(ctx, sweep.Selector{OlderThan: deadOlderThan})
			if err != nil {
				return nil, err
			}
			return set.Paths(), nil
		}

		snap, err := sweep.NewSnapshotter(st).Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return snap.Paths(), nil
	}()
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		printer.Println("No dead paths found.")
		return nil
	}

	if err := printer.Print(deadList(paths)); err != nil {
		return err
	}
	if printer.Format() == output.FormatTable {
		printer.Printf("%d dead path(s)\n", len(paths))
	}
	return nil
}
