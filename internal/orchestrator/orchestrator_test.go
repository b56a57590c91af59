package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/internal/cache"
	"github.com/eddiedunn/moltest/internal/discovery"
	"github.com/eddiedunn/moltest/internal/history"
	"github.com/eddiedunn/moltest/internal/hooks"
	"github.com/eddiedunn/moltest/internal/keyword"
	"github.com/eddiedunn/moltest/internal/reporter"
	"github.com/eddiedunn/moltest/internal/scheduler"
	"github.com/eddiedunn/moltest/internal/watch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcess struct{ code int }

func (p stubProcess) Wait() (int, error) { return p.code, nil }
func (p stubProcess) Output() string     { return "" }

// stubLauncher fails the runs listed in codes and passes everything else.
type stubLauncher struct {
	codes map[string]int

	mu      sync.Mutex
	started []string
}

func (l *stubLauncher) Start(_ context.Context, run api.Run) (scheduler.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, run.ID)
	return stubProcess{code: l.codes[run.ID]}, nil
}

func (l *stubLauncher) startedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.started...)
}

type captureReporter struct {
	results []reporter.Result
}

func (c *captureReporter) Report(r reporter.Result) error {
	c.results = append(c.results, r)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(path))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

// projectTree creates db:default[pg14], db:default[pg15], web:default and
// web:lint (tagged slow).
func projectTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "roles/web/molecule/default/molecule.yml", "")
	writeFile(t, root, "roles/web/molecule/lint/molecule.yml", "")
	writeFile(t, root, "roles/web/molecule/lint/moltest.tags", "slow, lint\n")
	writeFile(t, root, "roles/db/molecule/default/molecule.yml", "")
	writeFile(t, root, "roles/db/molecule/default/moltest.params.yml", "- id: pg14\n- id: pg15\n")
	return root
}

type fixture struct {
	root     string
	launcher *stubLauncher
	cache    *cache.Store
	reports  *captureReporter
	events   *eventLog
	orch     *Orchestrator
}

func newFixture(t *testing.T, codes map[string]int) *fixture {
	t.Helper()
	f := &fixture{
		root:     projectTree(t),
		launcher: &stubLauncher{codes: codes},
		reports:  &captureReporter{},
		events:   &eventLog{},
	}
	f.cache = cache.NewStore(filepath.Join(f.root, ".moltest_cache.json"))

	d := hooks.NewDispatcher()
	d.Register("recorder", hooks.Funcs{
		BeforeRunFunc: func(rc api.RunContext) error {
			f.events.add("before_run")
			return nil
		},
		BeforeScenarioFunc: func(id string) error {
			f.events.add("before_scenario " + id)
			return nil
		},
		AfterScenarioFunc: func(id string, s api.Status) error {
			f.events.add("after_scenario " + id + " " + string(s))
			return nil
		},
		AfterRunFunc: func(outcomes []api.Outcome) error {
			f.events.add("after_run")
			return nil
		},
	})

	f.orch = New(Config{
		Discoverer: discovery.NewDiscoverer([]string{".git"}),
		Launcher:   f.launcher,
		Cache:      f.cache,
		Hooks:      d,
		Reporter:   f.reports,
	})
	return f
}

func statusByID(outcomes []api.Outcome) map[string]api.Status {
	m := make(map[string]api.Status, len(outcomes))
	for _, o := range outcomes {
		m[o.ID] = o.Status
	}
	return m
}

func TestRun_FullSession(t *testing.T) {
	f := newFixture(t, map[string]int{"db:default[pg15]": 2})

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, Parallel: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExitCode)
	assert.Equal(t, map[string]api.Status{
		"db:default[pg14]": api.StatusPassed,
		"db:default[pg15]": api.StatusFailed,
		"web:default":      api.StatusPassed,
		"web:lint":         api.StatusPassed,
	}, statusByID(report.Result.Outcomes))

	require.Len(t, f.reports.results, 1)
	assert.Equal(t, report.Result.Outcomes, f.reports.results[0].Outcomes)

	events := f.events.all()
	require.NotEmpty(t, events)
	assert.Equal(t, "before_run", events[0])
	assert.Equal(t, "after_run", events[len(events)-1])
	assert.Contains(t, events, "after_scenario db:default[pg15] failed")

	reloaded := cache.NewStore(f.cache.Path())
	_, err = reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"db:default[pg15]": true}, reloaded.PreviouslyFailed())
}

func TestRun_SequentialAndParallelAgree(t *testing.T) {
	codes := map[string]int{"web:lint": 1, "db:default[pg14]": 3}

	seq := newFixture(t, codes)
	r1, err := seq.orch.Run(context.Background(), Options{Root: seq.root, Parallel: 1})
	require.NoError(t, err)

	par := newFixture(t, codes)
	r2, err := par.orch.Run(context.Background(), Options{Root: par.root, Parallel: 4})
	require.NoError(t, err)

	assert.Equal(t, statusByID(r1.Result.Outcomes), statusByID(r2.Result.Outcomes))
	assert.Equal(t, r1.Selection.RunIDs(), r2.Selection.RunIDs())

	// Both caches reload to the same statuses.
	assert.Equal(t, cachedStatuses(t, seq.cache.Path()), cachedStatuses(t, par.cache.Path()))
	assert.Equal(t, statusByID(r1.Result.Outcomes), cachedStatuses(t, par.cache.Path()))
	assert.Equal(t, map[string]bool{"web:lint": true, "db:default[pg14]": true}, cache.NewStore(par.cache.Path()).PreviouslyFailed())
}

func cachedStatuses(t *testing.T, path string) map[string]api.Status {
	t.Helper()
	store := cache.NewStore(path)
	_, err := store.Load()
	require.NoError(t, err)
	m := make(map[string]api.Status)
	for _, e := range store.Entries() {
		m[e.ID] = e.Status
	}
	return m
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		expected []string
	}{
		{
			name:     "everything",
			opts:     Options{},
			expected: []string{"db:default[pg14]", "db:default[pg15]", "web:default", "web:lint"},
		},
		{
			name:     "all keyword",
			opts:     Options{Scenarios: []string{"all"}},
			expected: []string{"db:default[pg14]", "db:default[pg15]", "web:default", "web:lint"},
		},
		{
			name:     "base id selects every parameter set",
			opts:     Options{Scenarios: []string{"db:default"}},
			expected: []string{"db:default[pg14]", "db:default[pg15]"},
		},
		{
			name:     "run ids",
			opts:     Options{Scenarios: []string{"web:lint", " db:default[pg15]"}},
			expected: []string{"db:default[pg15]", "web:lint"},
		},
		{
			name:     "keyword and",
			opts:     Options{Keyword: "db and 15"},
			expected: []string{"db:default[pg15]"},
		},
		{
			name:     "keyword not",
			opts:     Options{Keyword: "not db"},
			expected: []string{"web:default", "web:lint"},
		},
		{
			name:     "explicit ids then keyword",
			opts:     Options{Scenarios: []string{"db:default", "web:default"}, Keyword: "default and not pg14"},
			expected: []string{"db:default[pg15]", "web:default"},
		},
		{
			name:     "keyword without match",
			opts:     Options{Keyword: "nothing"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tt.opts.Root = f.root

			sel, err := f.orch.Select(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sel.RunIDs())
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.Select(Options{Root: f.root, Keyword: "(web or db"})
	var perr *keyword.ParseError
	assert.ErrorAs(t, err, &perr)

	_, err = f.orch.Select(Options{Root: f.root, Scenarios: []string{"web:default", "nope", "db:x"}})
	assert.ErrorIs(t, err, ErrUnknownScenario)
	assert.ErrorContains(t, err, "nope, db:x")

	_, err = f.orch.Select(Options{Root: t.TempDir()})
	assert.ErrorIs(t, err, discovery.ErrNoScenarios)

	_, err = f.orch.Select(Options{Root: filepath.Join(f.root, "missing")})
	assert.ErrorIs(t, err, discovery.ErrInvalidRoot)
}

func TestSelect_ParseErrorBeforeAnythingRuns(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, Keyword: "web and"})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Empty(t, f.launcher.startedIDs())
	assert.Empty(t, f.events.all())
	assert.NoFileExists(t, f.cache.Path())
}

func TestRun_RerunFailed(t *testing.T) {
	f := newFixture(t, nil)
	seed := cache.NewStore(f.cache.Path())
	require.NoError(t, seed.Record([]api.Outcome{
		{ID: "web:default", Status: api.StatusFailed, ExitCode: api.IntPtr(2)},
		{ID: "web:lint", Status: api.StatusPassed, ExitCode: api.IntPtr(0)},
		{ID: "gone:default", Status: api.StatusError},
	}))

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, RerunFailed: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"web:default"}, report.Selection.RunIDs())
	assert.Equal(t, []string{"web:default"}, f.launcher.startedIDs())
	assert.Equal(t, 0, report.ExitCode)

	// The rerun passed, so nothing is left to rerun and unselected entries survive.
	reloaded := cache.NewStore(f.cache.Path())
	assert.Equal(t, map[string]bool{"gone:default": true}, reloaded.PreviouslyFailed())
	assert.Len(t, reloaded.Entries(), 3)
}

func TestRun_RerunFailedWithEmptyCacheRunsEverything(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, RerunFailed: true})
	require.NoError(t, err)

	assert.Len(t, report.Selection.RunIDs(), 4)
	assert.NotEmpty(t, report.Selection.Warnings)
	assert.Equal(t, len(report.Selection.Warnings), report.Result.Warnings)
}

func TestRun_RerunFailedOutsideSelectionIsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, cache.NewStore(f.cache.Path()).Record([]api.Outcome{
		{ID: "db:default[pg14]", Status: api.StatusFailed, ExitCode: api.IntPtr(1)},
	}))

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, RerunFailed: true, Keyword: "web"})
	require.NoError(t, err)

	assert.Empty(t, report.Result.Outcomes)
	assert.Equal(t, 0, report.ExitCode)
}

func TestRun_SkipTags(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, SkipTags: []string{"slow"}})
	require.NoError(t, err)

	statuses := statusByID(report.Result.Outcomes)
	assert.Equal(t, api.StatusSkipped, statuses["web:lint"])
	assert.NotContains(t, f.launcher.startedIDs(), "web:lint")
	assert.Equal(t, 0, report.ExitCode, "tag skips do not fail the session")

	for _, o := range report.Result.Outcomes {
		if o.ID == "web:lint" {
			assert.Equal(t, api.ReasonTag, o.Reason)
		}
	}
}

func TestRun_EmptySelectionStillRunsHooks(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, Keyword: "nothing"})
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode)
	assert.Empty(t, report.Result.Outcomes)
	assert.Equal(t, []string{"before_run", "after_run"}, f.events.all())
	require.Len(t, f.reports.results, 1)
	assert.NoFileExists(t, f.cache.Path())
}

func TestRun_FailFastMarksRemainingSkipped(t *testing.T) {
	f := newFixture(t, map[string]int{"db:default[pg14]": 1})

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, Parallel: 1, FailFast: true})
	require.NoError(t, err)

	require.Len(t, report.Result.Outcomes, 4)
	assert.Equal(t, []string{"db:default[pg14]"}, f.launcher.startedIDs())
	summary := report.Result.Summary()
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.EarlyStopped)
	assert.Equal(t, 1, report.ExitCode)
}

func TestRun_HookErrorsAreReported(t *testing.T) {
	f := newFixture(t, nil)
	d := hooks.NewDispatcher()
	d.Register("broken", hooks.Funcs{
		BeforeScenarioFunc: func(string) error { return assert.AnError },
	})
	f.orch.cfg.Hooks = d

	report, err := f.orch.Run(context.Background(), Options{Root: f.root, Scenarios: []string{"web:default"}})
	require.NoError(t, err)

	assert.Equal(t, 0, report.ExitCode, "hooks never gate a run")
	require.Len(t, report.Result.HookErrors, 1)
	assert.Contains(t, report.Result.HookErrors[0], "broken.before_scenario")

	second, err := f.orch.Run(context.Background(), Options{Root: f.root, Keyword: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, second.Result.HookErrors, "earlier sessions' hook errors are not repeated")
}

func TestRun_RecordsHistory(t *testing.T) {
	f := newFixture(t, map[string]int{"web:lint": 1})
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f.orch.cfg.History = store

	report, err := f.orch.Run(context.Background(), Options{Root: f.root})
	require.NoError(t, err)
	require.NotEmpty(t, report.HistoryID)

	run, outcomes, err := store.GetRun(context.Background(), report.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ExitCode)
	assert.Equal(t, 4, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Failed)
	require.Len(t, outcomes, 4)
	assert.Equal(t, report.Selection.RunIDs()[0], outcomes[0].ID)
}

func TestWatch_RerunsOnChange(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.cfg.WatchIgnore = []string{f.cache.Path()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan *Report, 4)
	done := make(chan struct{})
	var last *Report
	var watchErr error
	go func() {
		defer close(done)
		last, watchErr = f.orch.Watch(ctx, Options{Root: f.root, Scenarios: []string{"web:default"}}, WatchOptions{
			Watcher:  watch.Options{Debounce: 50 * time.Millisecond},
			OnReport: func(r *Report) { reports <- r },
		})
	}()

	waitReport := func() *Report {
		select {
		case r := <-reports:
			return r
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a session")
			return nil
		}
	}

	waitReport()
	// The first session's cache write must not retrigger, so give the
	// watcher time to settle before the real change.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, f.root, "roles/web/tasks/main.yml", "- debug: msg=hi\n")
	waitReport()

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	require.NoError(t, watchErr)
	require.NotNil(t, last)
	assert.Equal(t, []string{"web:default", "web:default"}, f.launcher.startedIDs())
}

func TestWatch_SelectionErrorIsReturned(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orch.Watch(context.Background(), Options{Root: f.root, Keyword: "or"}, WatchOptions{})
	var perr *keyword.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestWatchDirs(t *testing.T) {
	r := &Report{Selection: &Selection{Discovery: &discovery.Result{Scenarios: []api.Scenario{
		{Role: "web", Name: "default", Directory: "/p/roles/web"},
		{Role: "web", Name: "lint", Directory: "/p/roles/web"},
		{Name: "smoke", Directory: "/p"},
	}}}}
	assert.Equal(t, []string{"/p/roles/web", "/p"}, watchDirs(r))
	assert.Nil(t, watchDirs(&Report{}))
}
