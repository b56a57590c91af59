package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/eddiedunn/moltest/internal/api"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress prints a line when each run starts and finishes. It is safe for
// concurrent use by the scheduler's workers.
type Progress struct {
	w     io.Writer
	color painter
	now   func() time.Time

	mu      sync.Mutex
	started map[string]time.Time
}

// NewProgress creates a progress printer writing to w.
func NewProgress(w io.Writer, color bool) *Progress {
	return &Progress{
		w:       w,
		color:   painter(color),
		now:     time.Now,
		started: make(map[string]time.Time),
	}
}

func (p *Progress) BeforeScenario(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started[runID] = p.now()
	fmt.Fprintf(p.w, "%s %s\n", p.color.paint(text.Colors{text.FgBlue}, "▶️  RUNNING:"), runID)
}

func (p *Progress) AfterScenario(runID string, status api.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := ""
	if start, ok := p.started[runID]; ok {
		duration = fmt.Sprintf(" (%ss)", formatSeconds(p.now().Sub(start), 2))
		delete(p.started, runID)
	}
	label := fmt.Sprintf("%s %s:", statusSymbol(status), statusLabel(status))
	fmt.Fprintf(p.w, "%s %s%s\n", p.color.status(label, string(status)), runID, duration)
}

func statusLabel(s api.Status) string {
	switch s {
	case api.StatusPassed:
		return "PASSED"
	case api.StatusFailed:
		return "FAILED"
	case api.StatusSkipped:
		return "SKIPPED"
	case api.StatusError:
		return "ERROR"
	default:
		return string(s)
	}
}
