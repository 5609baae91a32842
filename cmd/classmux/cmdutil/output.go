package cmdutil

import (
	"fmt"
	"io"

	"github.com/classmux/classmux/internal/cli/output"
)

// OutputFormat parses the global --output flag.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintOutput renders data in the requested format.
//
// JSON and YAML marshal data directly. Table format uses the given
// renderer, or prints emptyMsg when there is nothing to show.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}
	if format == output.FormatTable && isEmpty {
		_, err = fmt.Fprintln(w, emptyMsg)
		return err
	}
	return render(w, format, data, table)
}

// PrintResourceWithSuccess prints a success line and then the resource as
// a table. JSON and YAML omit the success line so the output stays
// machine-readable.
func PrintResourceWithSuccess(w io.Writer, resource any, table output.TableRenderer, msg string) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		if _, err := fmt.Fprintf(w, "✓ %s\n\n", msg); err != nil {
			return err
		}
	}
	return render(w, format, resource, table)
}

func render(w io.Writer, format output.Format, data any, table output.TableRenderer) error {
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, table)
	}
}
