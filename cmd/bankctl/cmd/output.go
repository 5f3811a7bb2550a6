package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", s)
	}
}

// Formatter renders command results.
type Formatter struct {
	Format Format
	Writer io.Writer
}

func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{Format: format, Writer: w}
}

// Print renders data as JSON or YAML, or as a table of headers and rows.
func (f *Formatter) Print(data any, headers []string, rows [][]string) error {
	switch f.Format {
	case FormatJSON:
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(data)
	}

	table := tablewriter.NewWriter(f.Writer)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// PrintLine writes a plain message in table mode only.
func (f *Formatter) PrintLine(format string, args ...any) {
	if f.Format != FormatTable {
		return
	}
	_, _ = fmt.Fprintf(f.Writer, format+"\n", args...)
}

// PrintRecord writes one streamed record: a JSON line, a YAML document or a
// tab separated row.
func (f *Formatter) PrintRecord(data any, fields []string) error {
	switch f.Format {
	case FormatJSON:
		return json.NewEncoder(f.Writer).Encode(data)
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.Writer, "---\n%s", out)
		return err
	}
	_, err := fmt.Fprintln(f.Writer, strings.Join(fields, "\t"))
	return err
}
