package cmd

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// printTable renders rows under header with the style used by every listing
// command. Headers are upper-cased by the style.
func printTable(w io.Writer, header table.Row, rows []table.Row) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
