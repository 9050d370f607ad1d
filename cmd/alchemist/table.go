package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableLayout describes one rendered table. Rows shorter than Headers are padded
// and an empty Rows renders the Empty placeholder in the first column.
type tableLayout struct {
	Title   string
	Headers []string
	Rows    [][]string
	Aligns  []columnAlignment
	Empty   string
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return renderTableLayout(tableLayout{Headers: headers, Rows: rows, Aligns: aligns})
}

func renderTableLayout(layout tableLayout) string {
	columns := len(layout.Headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title := strings.TrimSpace(layout.Title); title != "" {
		tw.SetTitle(title)
	}
	tw.AppendHeader(toRow(layout.Headers, columns))

	rows := layout.Rows
	if len(rows) == 0 && layout.Empty != "" {
		rows = [][]string{{layout.Empty}}
	}
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(layout.Aligns) && layout.Aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func toRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
