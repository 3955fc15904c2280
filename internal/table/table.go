// Package table renders listing output as a boxed text table, CSV, JSON or
// YAML. Structured formats nest the rows under the table kind.
package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

// Format names an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted --format values.
var Formats = []string{string(FormatTable), string(FormatCSV), string(FormatJSON), string(FormatYAML)}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (expected one of %s)", s, strings.Join(Formats, ", "))
}

// Table collects a header and rows for one kind of entity.
type Table struct {
	kind   string
	header []string
	rows   [][]string
}

// New creates an empty table. kind is the key structured formats nest the
// rows under.
func New(kind string) *Table {
	return &Table{kind: kind}
}

// SetHeader sets the column names.
func (t *Table) SetHeader(columns ...string) *Table {
	t.header = append([]string(nil), columns...)
	return t
}

// AddRow appends a row. Missing cells render empty and extra cells are
// dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.header))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Kind returns the table kind.
func (t *Table) Kind() string {
	return t.kind
}

// Render writes the table to w in format.
func (t *Table) Render(w io.Writer, format Format) error {
	switch format {
	case FormatTable, "":
		return t.renderText(w)
	case FormatCSV:
		return t.renderCSV(w)
	case FormatJSON:
		return t.renderJSON(w)
	case FormatYAML:
		return t.renderYAML(w)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func (t *Table) renderText(w io.Writer) error {
	widths := make([]int, len(t.header))
	measure := func(row []string) {
		for i, cell := range row {
			for _, line := range strings.Split(cell, "\n") {
				if n := runewidth.StringWidth(line); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}

	var buf bytes.Buffer
	rule := func() {
		buf.WriteByte('+')
		for _, n := range widths {
			buf.WriteString(strings.Repeat("-", n+2))
			buf.WriteByte('+')
		}
		buf.WriteByte('\n')
	}
	line := func(row []string) {
		cells := make([][]string, len(row))
		height := 1
		for i, cell := range row {
			cells[i] = strings.Split(cell, "\n")
			if len(cells[i]) > height {
				height = len(cells[i])
			}
		}
		for h := 0; h < height; h++ {
			buf.WriteByte('|')
			for i, n := range widths {
				text := ""
				if h < len(cells[i]) {
					text = cells[i][h]
				}
				buf.WriteByte(' ')
				buf.WriteString(runewidth.FillRight(text, n))
				buf.WriteString(" |")
			}
			buf.WriteByte('\n')
		}
	}

	rule()
	line(t.header)
	rule()
	for _, row := range t.rows {
		line(row)
	}
	rule()
	_, err := w.Write(buf.Bytes())
	return err
}

func (t *Table) renderCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// renderJSON writes {"kind": [{...}, ...]} keeping header order in each
// object, which encoding/json does not do for maps.
func (t *Table) renderJSON(w io.Writer) error {
	var buf bytes.Buffer
	kind, err := json.Marshal(t.kind)
	if err != nil {
		return err
	}
	buf.WriteString("{\n  ")
	buf.Write(kind)
	buf.WriteString(": [")
	for r, row := range t.rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    {")
		for i, col := range t.header {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return err
			}
			val, err := json.Marshal(row[i])
			if err != nil {
				return err
			}
			buf.WriteString("\n      ")
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("\n    }")
	}
	if len(t.rows) > 0 {
		buf.WriteString("\n  ")
	}
	buf.WriteString("]\n}\n")
	_, err = w.Write(buf.Bytes())
	return err
}

func (t *Table) renderYAML(w io.Writer) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, col := range t.header {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: row[i]},
			)
		}
		seq.Content = append(seq.Content, m)
	}
	if len(seq.Content) == 0 {
		seq.Style = yaml.FlowStyle
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.kind},
		seq,
	}}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
