package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable draws a rounded table. rightAligned lists 1-based column
// numbers that hold numeric values.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range header {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, number := range rightAligned {
		configs = append(configs, table.ColumnConfig{
			Number:      number,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
