// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package render turns query results into tables for display.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Rows decodes a JSON array of row objects.
func Rows(data string) ([]map[string]any, error) {
	if data == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewBufferString(data))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return rows, nil
}

// HTML renders rows as an HTML table with one column per name, in order.
// totalRows is reported in the caption when it exceeds the rows present.
func HTML(columns []string, data string, totalRows int) (string, error) {
	rows, err := Rows(data)
	if err != nil {
		return "", err
	}
	t := build(columns, rows, totalRows)
	return t.RenderHTML(), nil
}

// Text writes rows as a plain-text table.
func Text(w io.Writer, columns []string, data string, totalRows int) error {
	rows, err := Rows(data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	t := build(columns, rows, totalRows)
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Render()
	return nil
}

func build(columns []string, rows []map[string]any, totalRows int) table.Writer {
	t := table.NewWriter()
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = formatValue(r[c])
		}
		t.AppendRow(row)
	}

	if totalRows < len(rows) {
		totalRows = len(rows)
	}
	if totalRows > len(rows) {
		t.SetCaption("%d of %d rows", len(rows), totalRows)
	} else {
		t.SetCaption("%d rows", len(rows))
	}
	return t
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
