package user

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/prompt"
	"github.com/classmux/classmux/pkg/store"
)

var (
	createUsername string
	createPassword string
	createRole     string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	Long: `Create a classroom account.

Anything not given as a flag is prompted for interactively.

Examples:
  # Fully interactive
  classmux user create

  # A teacher, non-interactively
  classmux user create --username mr-nguyen --password secret --role teacher

  # A student
  classmux user create --username anna --password secret --role student`,
	RunE: runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createUsername, "username", "u", "", "Username (prompts if not provided)")
	f.StringVarP(&createPassword, "password", "p", "", "Password (prompts if not provided)")
	f.StringVar(&createRole, "role", "", "Role (teacher|student)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	username := createUsername
	if username == "" {
		if username, err = prompt.InputRequired("Username"); err != nil {
			return cmdutil.IgnoreAbort(err)
		}
	}

	password := createPassword
	if password == "" {
		password, err = prompt.PasswordWithConfirmation("Password", "Confirm password", store.MinPasswordLength)
		if err != nil {
			return cmdutil.IgnoreAbort(err)
		}
	}

	role := createRole
	if role == "" {
		role, err = prompt.Select("Role", []prompt.SelectOption{
			{Label: "teacher", Value: string(store.RoleTeacher), Description: "Owns rooms and monitors students"},
			{Label: "student", Value: string(store.RoleStudent), Description: "Joins rooms and answers monitoring requests"},
		})
		if err != nil {
			return cmdutil.IgnoreAbort(err)
		}
	}

	user, err := st.CreateUser(context.Background(), username, password, store.Role(role))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, user, userTable{user},
		fmt.Sprintf("User '%s' created", user.Username))
}
