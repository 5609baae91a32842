// Package room implements the "classmux room" command group.
package room

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for room management.
var Cmd = &cobra.Command{
	Use:   "room",
	Short: "Room management",
	Long: `Inspect and clean up monitoring rooms in the shared database.

Rooms are created and deleted by teachers through the protocol; these
commands give operators a read side and a way to remove leftovers.

Examples:
  # List all rooms
  classmux room list

  # List participants of a room
  classmux room participants lab-1

  # Delete a leftover room
  classmux room delete lab-1`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(participantsCmd)
	Cmd.AddCommand(deleteCmd)
}
