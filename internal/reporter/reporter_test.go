package reporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eddiedunn/moltest/internal/api"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureResult() Result {
	return Result{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  12345600 * time.Microsecond,
		Outcomes: []api.Outcome{
			{ID: "web:default", Scenario: "default", Role: "web", Status: api.StatusPassed, Duration: 1500 * time.Millisecond, ExitCode: api.IntPtr(0)},
			{ID: "db:default[pg15]", Scenario: "default", Role: "db", Status: api.StatusFailed, Duration: 2250 * time.Millisecond, ExitCode: api.IntPtr(2), Output: "TASK failed\nfatal: boom"},
			{ID: "cluster", Scenario: "cluster", Status: api.StatusSkipped, Reason: api.ReasonEarlyStop},
			{ID: "app:lint", Scenario: "lint", Role: "app", Status: api.StatusError, Duration: 400 * time.Microsecond, Reason: "fork/exec molecule: no such file or directory"},
		},
	}
}

func emptyResult() Result {
	return Result{Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func render(t *testing.T, fn func(*bytes.Buffer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf))
	return buf.Bytes()
}

func TestWriteJSON_Golden(t *testing.T) {
	g := newGoldie(t)
	g.Assert(t, "report.json", render(t, func(b *bytes.Buffer) error { return WriteJSON(b, fixtureResult()) }))
	g.Assert(t, "empty.json", render(t, func(b *bytes.Buffer) error { return WriteJSON(b, emptyResult()) }))
}

func TestWriteMarkdown_Golden(t *testing.T) {
	g := newGoldie(t)
	g.Assert(t, "report.md", render(t, func(b *bytes.Buffer) error { return WriteMarkdown(b, fixtureResult()) }))
	g.Assert(t, "empty.md", render(t, func(b *bytes.Buffer) error { return WriteMarkdown(b, emptyResult()) }))
}

func TestWriteJUnit_Golden(t *testing.T) {
	g := newGoldie(t)
	g.Assert(t, "report.xml", render(t, func(b *bytes.Buffer) error { return WriteJUnit(b, fixtureResult()) }))
}

func TestReports_Deterministic(t *testing.T) {
	// Same outcomes, collected in a different order by parallel workers and
	// then put back into selection order.
	a := fixtureResult()
	b := fixtureResult()
	shuffled := []api.Outcome{b.Outcomes[3], b.Outcomes[1], b.Outcomes[0], b.Outcomes[2]}
	b.Outcomes = []api.Outcome{shuffled[2], shuffled[1], shuffled[3], shuffled[0]}

	for name, write := range map[string]func(*bytes.Buffer, Result) error{
		"json":  func(w *bytes.Buffer, r Result) error { return WriteJSON(w, r) },
		"junit": func(w *bytes.Buffer, r Result) error { return WriteJUnit(w, r) },
	} {
		t.Run(name, func(t *testing.T) {
			first := render(t, func(w *bytes.Buffer) error { return write(w, a) })
			second := render(t, func(w *bytes.Buffer) error { return write(w, b) })
			assert.Equal(t, first, second)
		})
	}
}

func TestReports_DoNotMutateOutcomes(t *testing.T) {
	r := fixtureResult()
	before := fixtureResult().Outcomes

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	require.NoError(t, WriteMarkdown(&buf, r))
	require.NoError(t, WriteJUnit(&buf, r))
	require.NoError(t, NewConsole(&buf, true).Report(r))

	assert.Equal(t, before, r.Outcomes)
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected string
	}{
		{0, "0.000"},
		{1500 * time.Millisecond, "1.500"},
		{400 * time.Microsecond, "0.000"},
		{1234567 * time.Microsecond, "1.235"},
		{90 * time.Second, "90.000"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Seconds(tt.in).String())
		})
	}
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	r := fixtureResult()
	r.Warnings = 2
	r.HookErrors = []string{"hook notify.after_run failed: boom"}

	require.NoError(t, NewConsole(&buf, false).Report(r))
	out := buf.String()

	assert.Contains(t, out, "Test Execution Summary")
	assert.Contains(t, out, "Passed")
	assert.Contains(t, out, "❌ db:default[pg15] (exit code 2)")
	assert.Contains(t, out, "💥 app:lint (fork/exec molecule: no such file or directory)")
	assert.NotContains(t, out, "web:default (")
	assert.Contains(t, out, "1 scenario(s) not started after an early stop")
	assert.Contains(t, out, "1 hook error(s)")
	assert.Contains(t, out, "hook notify.after_run failed: boom")
	assert.Contains(t, out, "2 warning(s)")
	assert.Contains(t, out, "3 of 4 scenarios did not pass")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestConsole_AllPassedAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := Result{Duration: 3 * time.Second, Outcomes: []api.Outcome{{ID: "a", Status: api.StatusPassed}}}
	require.NoError(t, NewConsole(&buf, false).Report(r))
	assert.Contains(t, buf.String(), "All selected scenarios passed in 3.00s")

	buf.Reset()
	require.NoError(t, NewConsole(&buf, false).Report(emptyResult()))
	assert.Contains(t, buf.String(), "No scenarios were selected")
}

func TestConsole_Color(t *testing.T) {
	text.EnableColors()
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf, true).Report(fixtureResult()))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestColorEnabled(t *testing.T) {
	orig := lookupEnv
	t.Cleanup(func() { lookupEnv = orig })

	env := map[string]string{}
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	assert.False(t, ColorEnabled(true, os.Stdout), "--no-color")

	env["NO_COLOR"] = ""
	assert.False(t, ColorEnabled(false, os.Stdout), "NO_COLOR set, even empty")
	delete(env, "NO_COLOR")

	env["CI"] = "true"
	assert.False(t, ColorEnabled(false, os.Stdout), "CI=true")
	delete(env, "CI")

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, ColorEnabled(false, f), "regular file is not a terminal")
	assert.False(t, ColorEnabled(false, nil))
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.BeforeScenario("web:default")
	clock = clock.Add(1250 * time.Millisecond)
	p.AfterScenario("web:default", api.StatusPassed)
	p.AfterScenario("app:lint", api.StatusError)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "▶️  RUNNING: web:default", lines[0])
	assert.Equal(t, "✅ PASSED: web:default (1.25s)", lines[1])
	assert.Equal(t, "💥 ERROR: app:lint", lines[2])
}

func TestFileOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    FileOptions
		wantErr string
	}{
		{"none", FileOptions{}, ""},
		{"defaults", FileOptions{JSONPath: DefaultJSONReport, MarkdownPath: DefaultMarkdownReport, JUnitPath: DefaultJUnitReport}, ""},
		{"upper case extension", FileOptions{JSONPath: "out/REPORT.JSON"}, ""},
		{"wrong json", FileOptions{JSONPath: "report.txt"}, "--json-report"},
		{"wrong md", FileOptions{MarkdownPath: "report.json"}, "--md-report"},
		{"wrong junit", FileOptions{JUnitPath: "report"}, "--junit-xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFiles_Report(t *testing.T) {
	dir := t.TempDir()
	opts := FileOptions{
		JSONPath:     filepath.Join(dir, "reports", "out.json"),
		MarkdownPath: filepath.Join(dir, "out.md"),
		JUnitPath:    filepath.Join(dir, "out.xml"),
	}

	require.NoError(t, NewFiles(opts).Report(fixtureResult()))

	for _, p := range opts.Paths() {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, info.Size(), int64(0))
	}

	data, err := os.ReadFile(opts.JSONPath)
	require.NoError(t, err)
	var expected bytes.Buffer
	require.NoError(t, WriteJSON(&expected, fixtureResult()))
	assert.Equal(t, expected.Bytes(), data)
}

func TestFiles_ReportContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	opts := FileOptions{
		JSONPath:     filepath.Join(blocker, "out.json"),
		MarkdownPath: filepath.Join(dir, "out.md"),
	}
	err := NewFiles(opts).Report(fixtureResult())
	assert.Error(t, err)
	assert.FileExists(t, opts.MarkdownPath)
}

type countingReporter struct {
	calls int
	err   error
}

func (c *countingReporter) Report(Result) error {
	c.calls++
	return c.err
}

func TestMulti(t *testing.T) {
	failing := &countingReporter{err: assert.AnError}
	ok := &countingReporter{}

	err := Multi{failing, ok}.Report(emptyResult())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
