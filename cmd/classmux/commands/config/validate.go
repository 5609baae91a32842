package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Check the configuration file for syntax errors and invalid values.

The file is loaded exactly as "classmux lb" and "classmux server" load
it, so a passing validation means both tiers will accept it.

Examples:
  # Validate the default config
  classmux config validate

  # Validate a specific file
  classmux config validate --config /etc/classmux/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Settings that pass validation but deserve a heads-up.
	var warnings []string
	if _, err := os.Stat(cfg.LB.ServersFile); os.IsNotExist(err) {
		warnings = append(warnings, fmt.Sprintf("servers file %q does not exist yet - the load balancer will create it empty on start", cfg.LB.ServersFile))
	}
	if cfg.Metrics.Enabled && !cfg.Ops.Enabled {
		warnings = append(warnings, fmt.Sprintf("metrics enabled without the ops endpoint - scrapes will use a standalone listener on port %d", cfg.Metrics.Port))
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

	return nil
}
