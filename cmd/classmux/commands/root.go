// Package commands implements the classmux command line interface.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	configcmd "github.com/classmux/classmux/cmd/classmux/commands/config"
	roomcmd "github.com/classmux/classmux/cmd/classmux/commands/room"
	usercmd "github.com/classmux/classmux/cmd/classmux/commands/user"
)

// Build metadata, recorded once at startup via SetVersionInfo.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo records the build metadata stamped into the binary so the
// version command and telemetry can report it.
func SetVersionInfo(version, commit, date string) {
	buildVersion, buildCommit, buildDate = version, commit, date
}

// cfgFile holds the value of the global --config flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "classmux",
	Short: "classmux - Classroom monitoring fabric",
	Long: `classmux is a two-tier TCP fabric for classroom monitoring.

A load balancer multiplexes every client connection over one link per
backend, and application servers dispatch the typed requests against a
shared database. One binary runs both tiers plus the management commands.

Use "classmux [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Subcommands read the presentation flags through cmdutil.Flags.
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute runs the root command; main turns the returned error into the
// process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/classmux/config.yaml)")
	pf.StringP("output", "o", "table", "Output format (table|json|yaml)")
	pf.Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		versionCmd,
		lbCmd,
		serverCmd,
		statusCmd,
		initCmd,
		usercmd.Cmd,
		roomcmd.Cmd,
		configcmd.Cmd,
		completionCmd,
	)

	// completionCmd replaces the stock cobra completion subcommand.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}
