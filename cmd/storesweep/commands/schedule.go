package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/internal/cli/output"
	"github.com/marmos91/storesweep/pkg/schedule"
)

var (
	scheduleCron string
	scheduleGC   bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the unattended sweep cron entry",
	Long: `Install, remove, or show the crontab entry that runs unattended sweeps.

The installed entry uses the quick strategy with confirmation skipped: the
cron profile favors a bounded, predictable pass per night and lets the next
night (or a manual iterative run) mop up stragglers.`,
}

var scheduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or update the cron entry",
	Long: `Install the sweep cron entry in the invoking user's crontab, replacing
any entry a previous install created. Other crontab lines are untouched.

Examples:
  # Nightly sweep at 03:00
  storesweep schedule install

  # Weekly, with compaction afterwards
  storesweep schedule install --cron "0 5 * * 0" --gc`,
	RunE: runScheduleInstall,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the cron entry",
	RunE:  runScheduleRemove,
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the installed cron entry",
	RunE:  runScheduleShow,
}

func init() {
	scheduleInstallCmd.Flags().StringVar(&scheduleCron, "cron", schedule.DefaultSchedule, "Cron expression for the sweep")
	scheduleInstallCmd.Flags().BoolVar(&scheduleGC, "gc", false, "Compact the store after each scheduled sweep")

	scheduleCmd.AddCommand(scheduleInstallCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
}

// scheduledCommand builds the command line the cron entry runs. The binary
// is referenced by its absolute path: cron's PATH is minimal.
func scheduledCommand() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine own executable path: %w", err)
	}

	parts := []string{self, "run", "--all", "--strategy", "quick", "--yes"}
	if cfgFile != "" {
		parts = append(parts, "--config", cfgFile)
	}
	if scheduleGC {
		parts = append(parts, "--gc")
	}
	return strings.Join(parts, " "), nil
}

func runScheduleInstall(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	command, err := scheduledCommand()
	if err != nil {
		return err
	}

	entry := schedule.Entry{Schedule: scheduleCron, Command: command}
	if err := schedule.NewCrontab().Install(cmd.Context(), entry); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Installed cron entry: %s %s\n", entry.Schedule, entry.Command)
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	removed, err := schedule.NewCrontab().Remove(cmd.Context())
	if err != nil {
		return err
	}

	if removed {
		fmt.Fprintln(cmd.OutOrStdout(), "Removed cron entry.")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "No cron entry installed.")
	}
	return nil
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	printer, err := getPrinter()
	if err != nil {
		return err
	}

	if _, err := loadConfig(); err != nil {
		return err
	}

	entry, err := schedule.NewCrontab().Current(cmd.Context())
	if err != nil {
		return err
	}

	if entry == nil {
		printer.Println("No cron entry installed.")
		return nil
	}

	if printer.Format() == output.FormatTable {
		printer.Printf("%s %s\n", entry.Schedule, entry.Command)
		return nil
	}
	return printer.Print(entry)
}
