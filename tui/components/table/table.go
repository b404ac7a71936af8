// Package table renders lipgloss tables in the orion theme.
package table

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/orion/tui/theme"
)

// Options configures NewStyledTableWithOptions.
type Options struct {
	Bordered      bool
	AlternateRows bool
	// HighlightRow is the data row rendered in the current-line style, or -1.
	HighlightRow int
	Theme        *theme.Theme
}

// DefaultOptions returns a bordered table with alternating rows.
func DefaultOptions() Options {
	return Options{
		Bordered:      true,
		AlternateRows: true,
		HighlightRow:  -1,
		Theme:         theme.DefaultTheme,
	}
}

// NewStyledTable creates a table with the default options.
func NewStyledTable() *ltable.Table {
	return NewStyledTableWithOptions(DefaultOptions())
}

// NewStyledTableWithOptions creates a table styled by opts.
func NewStyledTableWithOptions(opts Options) *ltable.Table {
	t := opts.Theme
	if t == nil {
		t = theme.DefaultTheme
	}

	tbl := ltable.New()
	if opts.Bordered {
		tbl = tbl.
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(theme.Border))
	} else {
		tbl = tbl.Border(lipgloss.HiddenBorder())
	}

	// With Headers set, StyleFunc sees the header as HeaderRow and data rows from 0.
	return tbl.StyleFunc(func(row, col int) lipgloss.Style {
		if row == ltable.HeaderRow {
			return t.TableHeader.Padding(0, 1)
		}
		style := lipgloss.NewStyle().Padding(0, 1)
		if row == opts.HighlightRow {
			return t.CurrentLine.Padding(0, 1)
		}
		if opts.AlternateRows && row%2 == 1 {
			style = style.Background(theme.VerySubtleBackground)
		}
		return style
	})
}

// Render builds a default table from headers and rows.
func Render(headers []string, rows [][]string) string {
	return NewStyledTable().Headers(headers...).Rows(rows...).String()
}

// StatusTable renders label/value pairs without a border.
func StatusTable(items [][2]string) string {
	opts := DefaultOptions()
	opts.Bordered = false
	opts.AlternateRows = false
	tbl := NewStyledTableWithOptions(opts)
	for _, item := range items {
		tbl = tbl.Row(theme.DefaultTheme.Muted.Render(item[0]+":"), item[1])
	}
	return tbl.String()
}
