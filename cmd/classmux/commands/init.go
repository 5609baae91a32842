package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Long: `Write a commented configuration file with every setting at its default.

Without --config the file lands at $XDG_CONFIG_HOME/classmux/config.yaml;
with it, at the given path. Existing files are kept unless --force is set.

Examples:
  # Create the config in the default location
  classmux init

  # Create it somewhere else
  classmux init --config /etc/classmux/config.yaml

  # Replace an existing file
  classmux init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()

	var err error
	if configPath == "" {
		configPath, err = config.InitConfig(initForce)
	} else {
		err = config.InitConfigToPath(configPath, initForce)
	}
	if err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	fmt.Fprintln(out, "  2. Create accounts with: classmux user create")
	fmt.Fprintln(out, "  3. Start an application server with: classmux server")
	fmt.Fprintln(out, "  4. Start the load balancer with: classmux lb")
	fmt.Fprintf(out, "  5. Or specify a custom config: classmux lb --config %s\n", configPath)

	return nil
}
