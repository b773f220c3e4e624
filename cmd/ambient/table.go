package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bft-labs/ambient/pkg/ambient"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
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

// itemLine is the one-line text of an item, as a terminal renderer shows it.
func itemLine(it ambient.Item) string {
	var parts []string
	switch {
	case it.Weather != nil:
		w := it.Weather
		if w.MinTemp != w.MaxTemp {
			parts = append(parts, fmt.Sprintf("%s %.0f°/%.0f°", w.Date.Format("Mon"), w.MaxTemp, w.MinTemp))
		}
		parts = append(parts, it.Title)
		if w.Description != "" {
			parts = append(parts, w.Description)
		}
	case !it.Start.IsZero():
		if it.Symbol != "" {
			parts = append(parts, "["+it.Symbol+"]")
		}
		parts = append(parts, it.Title, eventTime(it))
	default:
		parts = append(parts, it.Title)
		if it.Source != "" {
			parts = append(parts, "("+it.Source+")")
		}
	}
	return strings.Join(nonEmpty(parts), " ")
}

func eventTime(it ambient.Item) string {
	if it.FullDay {
		return it.Start.Format("Mon Jan 2")
	}
	return it.Start.Format("Mon Jan 2 15:04")
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatInterval(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.String()
}
