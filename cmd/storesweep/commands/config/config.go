// Package config implements the "storesweep config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration management.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage storesweep configuration",
	Long: `Manage the storesweep configuration file.

Use "storesweep config init" to create a configuration file with defaults,
then edit it to point at your store.`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(pathCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}

// configPathFromFlags returns the --config persistent flag inherited from
// the root command.
func configPathFromFlags(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
