package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// writeTable prints rows as space-aligned columns. Widths are display
// widths so accented tribunal names line up.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := runewidth.StringWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	rule := make([]string, len(header))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}

	for _, row := range append([][]string{header, rule}, rows...) {
		if _, err := fmt.Fprintln(w, formatRow(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

func formatRow(row []string, widths []int) string {
	var sb strings.Builder
	for i, n := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(cell)
		// no trailing padding on the last column
		if i < len(widths)-1 {
			sb.WriteString(strings.Repeat(" ", n-runewidth.StringWidth(cell)))
		}
	}
	return sb.String()
}

// clip shortens s to at most width display cells
func clip(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
