package room

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Delete a room",
	Long: `Delete a room and its participant list.

Rooms are normally deleted when their teacher logs out; use this to clean
up rooms left behind by a crashed teacher client. You will be prompted
for confirmation unless --force is specified.

Examples:
  # Delete room with confirmation
  classmux room delete lab-1

  # Delete room without confirmation
  classmux room delete lab-1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	roomID := args[0]

	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if _, err := st.GetRoom(context.Background(), roomID); err != nil {
		return fmt.Errorf("get room: %w", err)
	}

	return cmdutil.ConfirmDelete("Room", roomID, deleteForce, func() error {
		if err := st.DeleteRoom(context.Background(), roomID); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}
