package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for storesweep.

To load completions:

Bash:
  # Linux:
  $ storesweep completion bash > /etc/bash_completion.d/storesweep
  # macOS:
  $ storesweep completion bash > $(brew --prefix)/etc/bash_completion.d/storesweep

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  # Linux:
  $ storesweep completion zsh > "${fpath[1]}/_storesweep"
  # macOS:
  $ storesweep completion zsh > $(brew --prefix)/share/zsh/site-functions/_storesweep

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ storesweep completion fish > ~/.config/fish/completions/storesweep.fish

PowerShell:
  PS> storesweep completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> storesweep completion powershell > storesweep.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}
