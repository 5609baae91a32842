// Package user implements the "classmux user" command group.
package user

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for account management.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "Manage classroom accounts",
	Long: `Create, inspect, and remove classroom accounts.

These commands talk to the configured database directly, so point
--config (or CLASSMUX_DATABASE_*) at the same database the servers use.

Examples:
  # List all accounts
  classmux user list

  # Create a teacher interactively
  classmux user create

  # Create a student with flags
  classmux user create --username anna --password secret --role student

  # Reset a password
  classmux user password anna

  # Delete an account
  classmux user delete anna`,
}

func init() {
	Cmd.AddCommand(listCmd, createCmd, getCmd, deleteCmd, passwordCmd)
}
