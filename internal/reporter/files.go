package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eddiedunn/moltest/pkg/logging"
)

// Default report file names used when a report flag is given without a path.
const (
	DefaultJSONReport     = "moltest_report.json"
	DefaultMarkdownReport = "moltest_report.md"
	DefaultJUnitReport    = "moltest_report.xml"
)

// FileOptions selects the report files to write. Empty paths are skipped.
type FileOptions struct {
	JSONPath     string
	MarkdownPath string
	JUnitPath    string
}

// Validate checks that every configured path carries its format's extension.
func (o FileOptions) Validate() error {
	checks := []struct {
		flag, path, ext string
	}{
		{"json-report", o.JSONPath, ".json"},
		{"md-report", o.MarkdownPath, ".md"},
		{"junit-xml", o.JUnitPath, ".xml"},
	}
	for _, c := range checks {
		if c.path == "" {
			continue
		}
		if !strings.EqualFold(filepath.Ext(c.path), c.ext) {
			return fmt.Errorf("--%s path %q must end in %s", c.flag, c.path, c.ext)
		}
	}
	return nil
}

// Paths returns the configured report paths.
func (o FileOptions) Paths() []string {
	var paths []string
	for _, p := range []string{o.JSONPath, o.MarkdownPath, o.JUnitPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Files writes the configured report files.
type Files struct {
	opts FileOptions
}

// NewFiles creates a file reporter.
func NewFiles(opts FileOptions) *Files {
	return &Files{opts: opts}
}

// Report writes every configured file. A failure to write one file does not
// prevent the others; the first error is returned.
func (f *Files) Report(r Result) error {
	writers := []struct {
		path   string
		render func(io.Writer, Result) error
	}{
		{f.opts.JSONPath, WriteJSON},
		{f.opts.MarkdownPath, WriteMarkdown},
		{f.opts.JUnitPath, WriteJUnit},
	}

	var first error
	for _, w := range writers {
		if w.path == "" {
			continue
		}
		if err := writeReport(w.path, r, w.render); err != nil {
			logging.Warn(logSubsystem, "Failed to write report %s: %v", w.path, err)
			if first == nil {
				first = err
			}
			continue
		}
		logging.Info(logSubsystem, "Report written to %s", w.path)
	}
	return first
}

func writeReport(path string, r Result, render func(io.Writer, Result) error) error {
	var buf bytes.Buffer
	if err := render(&buf, r); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
