package reporter

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

var lookupEnv = os.LookupEnv

// ColorEnabled reports whether styled output should be written to f. Color
// is off when noColor is set, when NO_COLOR is present, when CI is "true",
// or when f is not a terminal.
func ColorEnabled(noColor bool, f *os.File) bool {
	if noColor {
		return false
	}
	if _, ok := lookupEnv("NO_COLOR"); ok {
		return false
	}
	if ci, _ := lookupEnv("CI"); ci == "true" {
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// painter applies go-pretty colors only when enabled.
type painter bool

func (p painter) paint(colors text.Colors, s string) string {
	if !p {
		return s
	}
	return colors.Sprint(s)
}

func (p painter) status(s string, status string) string {
	switch status {
	case "passed":
		return p.paint(text.Colors{text.FgGreen, text.Bold}, s)
	case "failed":
		return p.paint(text.Colors{text.FgRed, text.Bold}, s)
	case "error":
		return p.paint(text.Colors{text.FgHiRed, text.Bold}, s)
	default:
		return p.paint(text.Colors{text.FgYellow}, s)
	}
}
