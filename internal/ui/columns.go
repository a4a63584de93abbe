package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// Column is one table column of a resource listing.
type Column struct {
	Title string
	Width int
	Value func(cloud.Resource) string
}

func statusCell(r cloud.Resource) string {
	return r.Status.Symbol() + " " + string(r.Status)
}

// Columns returns the listing columns for a family.
func Columns(f cloud.Family) []Column {
	cols := []Column{
		{Title: "Status", Width: 13, Value: statusCell},
		{Title: "Name", Width: 28, Value: func(r cloud.Resource) string { return r.Name }},
	}
	switch f {
	case cloud.FamilyCompute:
		cols = append(cols,
			Column{Title: "Zone", Width: 11, Value: func(r cloud.Resource) string { return r.Attr("zone") }},
			Column{Title: "Profile", Width: 12, Value: func(r cloud.Resource) string { return r.Attr("profile") }},
			Column{Title: "Primary IP", Width: 15, Value: func(r cloud.Resource) string { return r.Attr("primary_ip") }},
			Column{Title: "VPC", Width: 18, Value: func(r cloud.Resource) string { return r.Attr("vpc") }},
		)
	case cloud.FamilyKubernetes, cloud.FamilyOpenShift:
		cols = append(cols,
			Column{Title: "Version", Width: 14, Value: func(r cloud.Resource) string { return r.Attr("version") }},
			Column{Title: "Workers", Width: 8, Value: func(r cloud.Resource) string { return r.Attr("workers") }},
			Column{Title: "Zones", Width: 24, Value: func(r cloud.Resource) string { return r.Attr("zones") }},
		)
	case cloud.FamilyServerless:
		cols = append(cols,
			Column{Title: "Native", Width: 14, Value: func(r cloud.Resource) string { return r.NativeStatus }},
			Column{Title: "Created", Width: 20, Value: func(r cloud.Resource) string { return r.Attr("created") }},
		)
	}
	return append(cols, Column{Title: "ID", Width: 10, Value: func(r cloud.Resource) string { return r.ShortID() }})
}

// Truncate shortens s to at most w terminal cells.
func Truncate(s string, w int) string {
	return runewidth.Truncate(s, w, "…")
}

// Cells renders one resource into truncated cells.
func Cells(cols []Column, r cloud.Resource) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Truncate(c.Value(r), c.Width)
	}
	return out
}

// WriteTable prints a plain aligned table, sized to the widest cell per column.
func WriteTable(w io.Writer, f cloud.Family, resources []cloud.Resource) error {
	cols := Columns(f)
	rows := make([][]string, 0, len(resources))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = runewidth.StringWidth(c.Title)
	}
	for _, r := range resources {
		cells := Cells(cols, r)
		for i, cell := range cells {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
		rows = append(rows, cells)
	}

	line := func(cells []string) string {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		return b.String()
	}

	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = strings.ToUpper(c.Title)
	}
	if _, err := fmt.Fprintln(w, line(titles)); err != nil {
		return err
	}
	for _, cells := range rows {
		if _, err := fmt.Fprintln(w, line(cells)); err != nil {
			return err
		}
	}
	return nil
}
