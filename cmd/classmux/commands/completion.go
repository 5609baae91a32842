package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate a shell completion script",
	Long: `Generate a completion script for the named shell.

The script is written to stdout; load it from your shell's completion
directory or profile. For example:

  # bash (Linux)
  classmux completion bash > /etc/bash_completion.d/classmux

  # zsh
  classmux completion zsh > "${fpath[1]}/_classmux"

  # fish
  classmux completion fish > ~/.config/fish/completions/classmux.fish

  # powershell
  classmux completion powershell | Out-String | Invoke-Expression

Completions take effect in new shell sessions. For zsh, completion
must already be enabled ("autoload -U compinit; compinit" in ~/.zshrc).`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletion(os.Stdout)
		case "zsh":
			return root.GenZshCompletion(os.Stdout)
		case "fish":
			return root.GenFishCompletion(os.Stdout, true)
		default:
			return root.GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
