// Package cmdutil provides shared helpers for classmux commands.
package cmdutil

// GlobalFlags holds flag values shared by every command.
type GlobalFlags struct {
	// Output is the requested output format (table|json|yaml).
	Output string

	// NoColor disables ANSI colors in terminal output.
	NoColor bool
}

// Flags is populated from the root command's persistent flags before any
// subcommand runs.
var Flags GlobalFlags
