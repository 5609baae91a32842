// Package prompt wraps promptui with the interactive flows the classmux
// subcommands need: required text input, masked passwords with confirmation,
// yes/no gates behind --force flags, and role selection. Every prompt maps
// Ctrl+C to ErrAborted so commands can exit quietly instead of printing a
// wrapped promptui error.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted reports that the user cancelled the prompt.
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err came from the user cancelling a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) ||
		errors.Is(err, promptui.ErrInterrupt) ||
		errors.Is(err, promptui.ErrAbort)
}

// normalize folds promptui's interrupt and abort errors into ErrAborted.
func normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case IsAborted(err):
		return ErrAborted
	default:
		return err
	}
}

// InputRequired prompts for a non-empty line of text.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("a value is required")
			}
			return nil
		},
	}

	value, err := p.Run()
	return value, normalize(err)
}

// Confirm asks a yes/no question. A "n" answer (promptui's abort) is a plain
// false, not an error; Ctrl+C is ErrAborted; an empty answer takes the
// default.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, hint),
		IsConfirm: true,
	}

	answer, err := p.Run()
	if errors.Is(err, promptui.ErrInterrupt) {
		return false, ErrAborted
	}
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		if answer == "" {
			return defaultYes, nil
		}
		return false, err
	}

	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// ConfirmWithForce skips the prompt when force is set, so destructive
// commands can honor a --force flag in one call.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
