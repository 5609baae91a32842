package user

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/prompt"
	"github.com/classmux/classmux/pkg/store"
)

var passwordCmd = &cobra.Command{
	Use:   "password <username>",
	Short: "Reset an account password",
	Long: `Prompt for a new password and store it for the named account.

Connections that are already authenticated stay up; the new password
applies from the next login.

Examples:
  classmux user password anna`,
	Args: cobra.ExactArgs(1),
	RunE: runPassword,
}

func runPassword(cmd *cobra.Command, args []string) error {
	username := args[0]

	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", store.MinPasswordLength)
	if err != nil {
		return cmdutil.IgnoreAbort(err)
	}

	if err := st.SetPassword(context.Background(), username, password); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Password updated for user '%s'\n", username)
	return nil
}
