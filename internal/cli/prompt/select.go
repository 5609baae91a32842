package prompt

import "github.com/manifoldco/promptui"

// SelectOption is one entry in a Select list. Value is what the caller gets
// back; a Description on the first option enables the details pane for the
// whole list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select renders a picker over options and returns the chosen Value.
func Select(label string, options []SelectOption) (string, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if len(options) > 0 && options[0].Description != "" {
		templates.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}

	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: templates,
	}

	idx, _, err := p.Run()
	if err != nil {
		return "", normalize(err)
	}

	return options[idx].Value, nil
}
