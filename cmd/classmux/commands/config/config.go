// Package config implements the "classmux config" command group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd groups the configuration inspection subcommands. Creating a new
// configuration file lives under "classmux init".
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
	Long: `Inspect the classmux configuration.

"show" prints the effective configuration after merging file values,
environment variables, and defaults. "validate" checks a file without
starting anything, and "schema" emits a JSON schema for editors.`,
}

func init() {
	Cmd.AddCommand(showCmd, validateCmd, schemaCmd)
}
