package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/circle/cli/pkg/config"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	out io.Writer = color.Output
)

// SetWriter redirects all output, returning the previous writer
func SetWriter(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Writer returns the current output destination
func Writer() io.Writer {
	return out
}

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// Table is a list rendered as rows for table output and as the raw
// value for JSON output.
type Table struct {
	Headers []string
	Rows    [][]string
	Raw     interface{}
}

// Print outputs a single value in the configured format. Text output
// falls back to indented JSON.
func Print(title string, data interface{}) error {
	if title != "" && GetOutputFormat() != FormatJSON {
		fmt.Fprintf(out, "%s:\n", title)
	}
	return printJSON(data)
}

// PrintList outputs t in the configured format
func PrintList(title string, t Table) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(t.Raw)
	default:
		if title != "" {
			color.New(color.Bold).Fprintf(out, "%s (%d)\n", title, len(t.Rows))
		}
		if len(t.Rows) == 0 {
			fmt.Fprintln(out, "  (none)")
			return nil
		}
		printTable(t.Headers, t.Rows)
		return nil
	}
}

// PrintRecord outputs a single record in the configured format. Keys
// are printed in sorted order.
func PrintRecord(title string, record map[string]interface{}) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(record)
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if GetOutputFormat() == FormatTable {
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, fmt.Sprintf("%v", record[k])})
		}
		printTable([]string{"Field", "Value"}, rows)
		return nil
	}

	if title != "" {
		fmt.Fprintf(out, "%s:\n", title)
	}
	bold := color.New(color.Bold)
	for _, k := range keys {
		bold.Fprint(out, k+": ")
		fmt.Fprintf(out, "%v\n", record[k])
	}
	return nil
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(out, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(out, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(out, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(out, "Warning: "+msg+"\n", args...)
}

func printJSON(data interface{}) error {
	s, err := FormatAsPrettyJSON(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, s)
	return nil
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprint(w, cell)
			if i < len(row)-1 {
				fmt.Fprint(w, "\t")
			}
		}
		fmt.Fprintln(w)
	}

	w.Flush()
}

// FormatAsPrettyJSON converts data to an indented JSON string
func FormatAsPrettyJSON(data interface{}) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
