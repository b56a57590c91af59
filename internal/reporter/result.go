package reporter

import (
	"math"
	"strconv"
	"time"

	"github.com/eddiedunn/moltest/internal/api"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const logSubsystem = "Reporter"

// Result is everything a renderer needs.
type Result struct {
	Outcomes []api.Outcome

	// Timestamp is when the run started.
	Timestamp time.Time

	// Duration is the wall-clock duration of the whole run.
	Duration time.Duration

	// Warnings counts the non-fatal problems seen during the run.
	Warnings int

	// HookErrors lists failed hook callbacks.
	HookErrors []string
}

// Summary counts the outcomes.
func (r Result) Summary() api.Summary {
	return api.Summarize(r.Outcomes)
}

// Reporter renders a Result somewhere.
type Reporter interface {
	Report(r Result) error
}

// Multi runs every reporter and returns the first error. All reporters run
// even if an earlier one fails.
type Multi []Reporter

func (m Multi) Report(r Result) error {
	var first error
	for _, rep := range m {
		if err := rep.Report(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Seconds renders a duration as seconds with three decimals.
type Seconds time.Duration

func (s Seconds) String() string {
	return formatSeconds(time.Duration(s), 3)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

func formatSeconds(d time.Duration, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(d.Seconds()*scale)/scale, 'f', decimals, 64)
}

var titleCaser = cases.Title(language.English)

// statusTitle returns "Passed" for passed and so on.
func statusTitle(s api.Status) string {
	return titleCaser.String(string(s))
}

func statusSymbol(s api.Status) string {
	switch s {
	case api.StatusPassed:
		return "✅"
	case api.StatusFailed:
		return "❌"
	case api.StatusSkipped:
		return "⏭️"
	case api.StatusError:
		return "💥"
	default:
		return "❓"
	}
}

// outcomeDetail explains a non-passing outcome in a few words.
func outcomeDetail(o api.Outcome) string {
	switch {
	case o.Reason != "" && o.ExitCode != nil:
		return o.Reason + ", exit code " + strconv.Itoa(*o.ExitCode)
	case o.Reason != "":
		return o.Reason
	case o.ExitCode != nil:
		return "exit code " + strconv.Itoa(*o.ExitCode)
	default:
		return ""
	}
}
