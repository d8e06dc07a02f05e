package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/storesweep/pkg/config"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Long: `Print the path of the configuration file that would be used, whether or
not it exists yet.`,
	RunE: runConfigPath,
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := configPathFromFlags(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
