package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// resultTable accumulates rows for CLI output. Ids, counts, and other numeric
// columns are registered by header name and rendered right-aligned; paths,
// statuses, and captions stay left-aligned, as do all headers.
type resultTable struct {
	headers []string
	numeric map[int]bool
	rows    []table.Row
}

func newResultTable(headers ...string) *resultTable {
	return &resultTable{headers: headers, numeric: make(map[int]bool)}
}

// numericColumns marks the named headers as number-valued.
func (rt *resultTable) numericColumns(names ...string) *resultTable {
	for _, name := range names {
		for i, header := range rt.headers {
			if header == name {
				rt.numeric[i] = true
			}
		}
	}
	return rt
}

// addRow appends one row. Missing trailing cells render empty.
func (rt *resultTable) addRow(cells ...string) {
	row := make(table.Row, len(rt.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	rt.rows = append(rt.rows, row)
}

func (rt *resultTable) render() string {
	if len(rt.headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(rt.headers))
	for i, name := range rt.headers {
		header[i] = name
	}
	tw.AppendHeader(header)
	tw.AppendRows(rt.rows)

	configs := make([]table.ColumnConfig, 0, len(rt.headers))
	for i := range rt.headers {
		align := text.AlignLeft
		if rt.numeric[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
