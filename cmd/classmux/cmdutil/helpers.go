package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/classmux/classmux/internal/cli/prompt"
)

// IgnoreAbort converts prompt aborts (Ctrl+C) into a quiet non-error exit.
func IgnoreAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		return nil
	}
	return err
}

// ConfirmDelete asks before running a destructive operation.
// The prompt is skipped when force is true.
func ConfirmDelete(kind, name string, force bool, fn func() error) error {
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", strings.ToLower(kind), name), force)
	switch {
	case err != nil:
		return IgnoreAbort(err)
	case !ok:
		fmt.Println("Aborted.")
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	fmt.Printf("✓ %s '%s' deleted\n", kind, name)
	return nil
}
