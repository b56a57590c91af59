package cmd

import (
	"io"
	"os"
	"time"

	"github.com/eddiedunn/moltest/internal/orchestrator"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// newActivity returns a spinner on w while discovery runs. There is no
// spinner when w is not a terminal or when log output is enabled, since
// both would garble it.
func newActivity(w io.Writer, verbosity int, suffix string) orchestrator.Activity {
	f, ok := w.(*os.File)
	if !ok || verbosity > 0 || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = suffix
	return s
}
