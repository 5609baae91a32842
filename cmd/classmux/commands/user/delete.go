package user

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account",
	Long: `Delete a classroom account, irreversibly.

Rooms the user teaches, memberships in other rooms, and any client
directory entry go with it. A confirmation prompt precedes the delete
unless --force is given.

Examples:
  # With confirmation
  classmux user delete anna

  # Without
  classmux user delete anna --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return cmdutil.ConfirmDelete("User", username, deleteForce, func() error {
		if err := st.DeleteUser(context.Background(), username); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
