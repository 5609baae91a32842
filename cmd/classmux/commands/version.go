package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the classmux version together with the commit, build date, and platform it was compiled for.",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(out, buildVersion)
			return
		}

		fmt.Fprintf(out, "classmux %s\n", buildVersion)
		for _, row := range [][2]string{
			{"Commit", buildCommit},
			{"Built", buildDate},
			{"Go version", runtime.Version()},
			{"OS/Arch", runtime.GOOS + "/" + runtime.GOARCH},
		} {
			fmt.Fprintf(out, "  %-11s %s\n", row[0]+":", row[1])
		}
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print only the version number")
}
