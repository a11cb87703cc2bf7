package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
)

// ParseFormat parses a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// Write writes data in the given structured format. FormatTable is only
// meaningful for Rendered values; see WriteTable.
func Write(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case FormatTable:
		r, ok := data.(Rendered)
		if !ok {
			return fmt.Errorf("table output needs a rendered report, got %T", data)
		}
		return WriteTable(w, r)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteTable renders the per-run table followed by the summary statistics.
func WriteTable(w io.Writer, r Rendered) error {
	title := "Individual Results"
	if r.Extractor != "" || r.Model != "" {
		title = fmt.Sprintf("%s (%s / %s)", title, r.Model, r.Extractor)
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}

	runs := tablewriter.NewWriter(w)
	header := []string{"Run"}
	for _, f := range r.Fields {
		header = append(header, f.Label())
	}
	header = append(header, "Error")
	runs.SetHeader(header)
	runs.SetAutoWrapText(false)
	for _, row := range r.Rows {
		line := []string{strconv.Itoa(row.Run)}
		for _, v := range row.Values {
			line = append(line, FormatValue(v))
		}
		line = append(line, row.Error)
		runs.Append(line)
	}
	runs.Render()

	if _, err := fmt.Fprintf(w, "\nSummary Statistics\nTotal Runs: %d  Errors: %d\n", r.Runs, r.Errors); err != nil {
		return err
	}
	if r.Interrupted {
		if _, err := fmt.Fprintln(w, "Interrupted: partial results from completed runs"); err != nil {
			return err
		}
	}
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Field", "Most Common", "Agreement", "Distinct", "Average", "Note"})
	summary.SetAutoWrapText(false)
	for _, f := range r.Fields {
		avg := ""
		if f.Mean != nil {
			avg = strconv.FormatFloat(*f.Mean, 'f', 2, 64)
		}
		summary.Append([]string{
			f.Label(),
			FormatValue(f.MajorityValue),
			fmt.Sprintf("%.0f%% (%d)", f.AgreementRatio*100, f.Samples),
			strconv.Itoa(len(f.DistinctValues)),
			avg,
			f.Note,
		})
	}
	summary.Render()
	return nil
}

// WriteRecords renders a plain table for list commands.
func WriteRecords(w io.Writer, header []string, records [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.AppendBulk(records)
	table.Render()
}

// FormatValue renders a canonical value for display. nil is "N/A".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "N/A"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
