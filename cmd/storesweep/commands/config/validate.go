package config

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the storesweep configuration file.

Checks for syntax errors, missing required fields, and invalid values, and
warns about settings that will fail at sweep time.

Examples:
  # Validate the default config
  storesweep config validate

  # Validate a specific config file
  storesweep config validate --config /etc/storesweep/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath := configPathFromFlags(cmd)

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Checks beyond schema validation: things that pass validation but
	// will fail the first sweep.
	var warnings []string

	if _, err := exec.LookPath(cfg.Store.ControlBin); err != nil {
		warnings = append(warnings, fmt.Sprintf("store control binary %q not found in PATH", cfg.Store.ControlBin))
	}
	if cfg.Store.Elevate != "" {
		if _, err := exec.LookPath(cfg.Store.Elevate); err != nil {
			warnings = append(warnings, fmt.Sprintf("elevation command %q not found in PATH", cfg.Store.Elevate))
		}
	}
	if !cfg.Journal.Enabled {
		warnings = append(warnings, "journal disabled - runs will not appear in 'storesweep history'")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nConfiguration summary:\n")
	fmt.Fprintf(out, "  Store root:      %s\n", cfg.Store.Root)
	fmt.Fprintf(out, "  Control binary:  %s\n", cfg.Store.ControlBin)
	fmt.Fprintf(out, "  Strategy:        %s\n", cfg.Sweep.Strategy)
	fmt.Fprintf(out, "  Workers:         %d\n", cfg.Sweep.Workers)
	fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}
