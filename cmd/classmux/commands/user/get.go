package user

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/output"
	"github.com/classmux/classmux/internal/cli/timeutil"
)

var getCmd = &cobra.Command{
	Use:   "get <username>",
	Short: "Show one account",
	Long: `Show a single classroom account, including whether the user is
currently connected through a load balancer.

Examples:
  classmux user get anna
  classmux user get anna -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	user, err := st.GetUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	online := "no"
	if clientID, err := st.LookupClientID(ctx, user.Username); err == nil {
		online = fmt.Sprintf("yes (client %s)", clientID)
	}

	format, err := cmdutil.OutputFormat()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, user)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, user)
	default:
		return output.SimpleTable(os.Stdout, [][2]string{
			{"Username", user.Username},
			{"Role", user.Role},
			{"Created", timeutil.FormatLocal(user.CreatedAt)},
			{"Online", online},
		})
	}
}
