package main

import (
	"fmt"
	"os"

	"github.com/classmux/classmux/cmd/classmux/commands"
)

// Version metadata stamped by the release build via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
