// Package render prints aligned terminal tables. Column widths follow
// display width, so emoji and wide runes in report text stay aligned.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table accumulates rows and prints them with padded columns.
type Table struct {
	header []string
	rows   [][]string
}

func NewTable(header ...string) *Table {
	return &Table{header: header}
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) Len() int {
	return len(t.rows)
}

// WriteTo prints the table with two spaces between columns and a dashed
// rule under the header.
func (t *Table) WriteTo(w io.Writer) {
	cols := len(t.header)
	for _, row := range t.rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}

	writeRow := func(row []string) {
		var sb strings.Builder
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(cell)
			// The last column never gets trailing padding.
			if i < cols-1 {
				pad := widths[i] - runewidth.StringWidth(cell)
				sb.WriteString(strings.Repeat(" ", pad+2))
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	if len(t.header) > 0 {
		writeRow(t.header)
		rule := make([]string, cols)
		for i := range rule {
			rule[i] = strings.Repeat("-", widths[i])
		}
		writeRow(rule)
	}
	for _, row := range t.rows {
		writeRow(row)
	}
}

// KeyValues prints aligned "key  value" pairs in the given order.
func KeyValues(w io.Writer, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		if l := runewidth.StringWidth(p[0]); l > width {
			width = l
		}
	}
	for _, p := range pairs {
		pad := width - runewidth.StringWidth(p[0])
		fmt.Fprintf(w, "%s%s  %s\n", p[0], strings.Repeat(" ", pad), p[1])
	}
}
