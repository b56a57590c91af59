// Package strings holds small text helpers for terminal output.
package strings

import (
	"strings"
)

// DefaultCellWidth is the widest free text cell printed in result tables.
const DefaultCellWidth = 60

// minWidth leaves room for one character plus "...".
const minWidth = 4

// SingleLine collapses all whitespace in s, including newlines, into single
// spaces and cuts the result to maxLen runes, ending in "..." when cut.
// maxLen below 4 is treated as 4.
func SingleLine(s string, maxLen int) string {
	if maxLen < minWidth {
		maxLen = minWidth
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
