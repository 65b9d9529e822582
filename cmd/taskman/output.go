package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/taskman/types"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table is the tabular rendering of a command result
type Table struct {
	Header []string
	Rows   [][]string
}

// OutputFormatter writes command results in the configured format
type OutputFormatter struct {
	format string
}

// NewOutputFormatter creates a formatter, rejecting unknown formats
func NewOutputFormatter(format string) (*OutputFormatter, error) {
	switch format {
	case "", FormatTable:
		return &OutputFormatter{format: FormatTable}, nil
	case FormatJSON, FormatYAML:
		return &OutputFormatter{format: format}, nil
	}
	return nil, NewValidationError("format output", "format", format,
		"Use one of: table, json, yaml")
}

// Write renders data; table formats use the table built by asTable
func (of *OutputFormatter) Write(w io.Writer, data any, asTable func() Table) error {
	switch of.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, asTable())
	}
}

func writeTable(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(t.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

var documentColumns = []string{"ID", "TITLE", "PROJECT", "STATE", "START", "STOP"}

func documentTable(docs []types.Document) Table {
	t := Table{Header: documentColumns}
	for _, doc := range docs {
		t.Rows = append(t.Rows, []string{
			doc.ID(),
			doc.String("title"),
			doc.String("project"),
			doc.String("state"),
			doc.String("start"),
			doc.String("stop"),
		})
	}
	return t
}

func nameTable(docs []types.Document, field string) Table {
	t := Table{Header: []string{"ID", strings.ToUpper(field)}}
	for _, doc := range docs {
		t.Rows = append(t.Rows, []string{doc.ID(), doc.String(field)})
	}
	return t
}
