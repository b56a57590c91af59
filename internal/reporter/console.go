package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/eddiedunn/moltest/internal/api"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Console prints the end-of-run summary.
type Console struct {
	w     io.Writer
	color painter
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: painter(color)}
}

func (c *Console) Report(r Result) error {
	var b strings.Builder
	s := r.Summary()

	b.WriteString("\n")
	if s.Total == 0 {
		b.WriteString(c.color.paint(text.Colors{text.FgYellow}, "📋 No scenarios were selected"))
		b.WriteString("\n")
		_, err := io.WriteString(c.w, b.String())
		return err
	}

	b.WriteString(c.summaryTable(s, r))
	b.WriteString("\n")

	if failed := notPassing(r.Outcomes); len(failed) > 0 {
		b.WriteString("\n")
		b.WriteString(c.color.paint(text.Colors{text.Bold}, "Failed scenarios:"))
		b.WriteString("\n")
		for _, o := range failed {
			line := fmt.Sprintf("   %s %s", statusSymbol(o.Status), o.ID)
			if detail := outcomeDetail(o); detail != "" {
				line += " (" + detail + ")"
			}
			b.WriteString(c.color.status(line, string(o.Status)))
			b.WriteString("\n")
		}
	}

	if s.EarlyStopped > 0 {
		fmt.Fprintf(&b, "\n⏹️  %d scenario(s) not started after an early stop\n", s.EarlyStopped)
	}
	if len(r.HookErrors) > 0 {
		fmt.Fprintf(&b, "\n%s\n", c.color.paint(text.Colors{text.FgYellow}, fmt.Sprintf("⚠️  %d hook error(s):", len(r.HookErrors))))
		for _, e := range r.HookErrors {
			fmt.Fprintf(&b, "   • %s\n", e)
		}
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&b, "\n%s\n", c.color.paint(text.Colors{text.FgYellow}, fmt.Sprintf("⚠️  %d warning(s), rerun with -v for details", r.Warnings)))
	}

	b.WriteString("\n")
	if s.Successful() {
		b.WriteString(c.color.paint(text.Colors{text.FgGreen, text.Bold}, fmt.Sprintf("🎉 All selected scenarios passed in %ss", formatSeconds(r.Duration, 2))))
	} else {
		b.WriteString(c.color.paint(text.Colors{text.FgRed, text.Bold}, fmt.Sprintf("💔 %d of %d scenarios did not pass (%ss)", s.Failed+s.Errored+s.EarlyStopped, s.Total, formatSeconds(r.Duration, 2))))
	}
	b.WriteString("\n")

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) summaryTable(s api.Summary, r Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Test Execution Summary")
	t.AppendHeader(table.Row{"Status", "Count"})

	rows := []struct {
		status api.Status
		count  int
	}{
		{api.StatusPassed, s.Passed},
		{api.StatusFailed, s.Failed},
		{api.StatusSkipped, s.Skipped},
		{api.StatusError, s.Errored},
	}
	for _, row := range rows {
		label := statusSymbol(row.status) + " " + statusTitle(row.status)
		count := fmt.Sprintf("%d", row.count)
		if row.count > 0 {
			count = c.color.status(count, string(row.status))
		}
		t.AppendRow(table.Row{label, count})
	}
	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d (%ss)", s.Total, formatSeconds(r.Duration, 2))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return t.Render()
}

func notPassing(outcomes []api.Outcome) []api.Outcome {
	var out []api.Outcome
	for _, o := range outcomes {
		if o.Status.IsFailure() {
			out = append(out, o)
		}
	}
	return out
}
