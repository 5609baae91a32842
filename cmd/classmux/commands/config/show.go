package config

import (
	"github.com/spf13/cobra"

	"github.com/classmux/classmux/internal/cli/output"
	"github.com/classmux/classmux/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Print the configuration the way a starting process would see it:
file values merged with environment variables and built-in defaults.

Examples:
  # Show the effective config as YAML
  classmux config show

  # Show as JSON
  classmux config show --output json

  # Show a specific file
  classmux config show --config /etc/classmux/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format: yaml or json")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}
