package user

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/timeutil"
	"github.com/classmux/classmux/pkg/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Long: `List every classroom account in the database.

Examples:
  # Table output
  classmux user list

  # Machine-readable output
  classmux user list -o json
  classmux user list -o yaml`,
	RunE: runList,
}

// userTable renders accounts as table rows.
type userTable []*store.User

func (ut userTable) Headers() []string {
	return []string{"USERNAME", "ROLE", "CREATED"}
}

func (ut userTable) Rows() [][]string {
	rows := make([][]string, len(ut))
	for i, u := range ut {
		rows[i] = []string{u.Username, u.Role, timeutil.FormatLocal(u.CreatedAt)}
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, users, len(users) == 0, "No users found.", userTable(users))
}
