package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch reports that the confirmation entry didn't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a masked secret with no validation, for
// confirmation-style prompts where length rules would be noise.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	value, err := p.Run()
	return value, normalize(err)
}

// PasswordWithConfirmation prompts for a new secret twice. The first entry
// enforces minLength; the second must match it exactly.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if len(s) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}

	password, err := p.Run()
	if err != nil {
		return "", normalize(err)
	}

	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if confirm != password {
		return "", ErrPasswordMismatch
	}

	return password, nil
}
