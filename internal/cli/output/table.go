package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by list results that know their own columns.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// newTable returns a borderless tablewriter configured for kubectl-style
// column output: no separators, two-space padding, left alignment.
func newTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetBorder(false)
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// PrintTable writes the renderer's rows under upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	t := newTable(w)
	t.SetAutoFormatHeaders(true)
	t.SetHeader(data.Headers())
	t.AppendBulk(data.Rows())
	t.Render()
	return nil
}

// SimpleTable writes key-value pairs as a headerless two-column table, for
// single-resource views like `user get`.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	t := newTable(w)
	t.SetAutoFormatHeaders(false)
	t.SetColumnSeparator(":")
	for _, pair := range pairs {
		t.Append([]string{pair[0], pair[1]})
	}
	t.Render()
	return nil
}
