package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/internal/cache"
	"github.com/eddiedunn/moltest/internal/discovery"
	"github.com/eddiedunn/moltest/internal/history"
	"github.com/eddiedunn/moltest/internal/hooks"
	"github.com/eddiedunn/moltest/internal/keyword"
	"github.com/eddiedunn/moltest/internal/reporter"
	"github.com/eddiedunn/moltest/internal/scheduler"
	"github.com/eddiedunn/moltest/pkg/logging"
)

const logSubsystem = "Orchestrator"

// AllScenarios selects every discovered run when passed as an explicit id.
const AllScenarios = "all"

// Options are the per-session selection and scheduling settings.
type Options struct {
	Root string

	// Keyword is the -k expression. Empty selects everything.
	Keyword string

	// Scenarios are explicit RunIDs or base ids. Empty, or a single
	// AllScenarios entry, selects everything.
	Scenarios []string

	// SkipTags marks runs carrying any of these tags as skipped.
	SkipTags []string

	RerunFailed bool

	Parallel    int
	FailFast    bool
	MaxFailures int
}

// Activity is shown while discovery walks the tree, e.g. a spinner.
type Activity interface {
	Start()
	Stop()
}

// Config holds the collaborators of an Orchestrator. Only Discoverer and
// Launcher are required.
type Config struct {
	Discoverer *discovery.Discoverer
	Launcher   scheduler.Launcher

	// Cache is read for rerun-failed and written after every session.
	Cache *cache.Store

	// Hooks may be nil.
	Hooks *hooks.Dispatcher

	// Observers are notified after the hooks, e.g. live progress output.
	Observers []scheduler.Observer

	// Reporter renders the final result. Errors are logged, never fatal.
	Reporter reporter.Reporter

	// History records each session when set.
	History *history.Store

	// Activity, when set, runs for the duration of discovery.
	Activity Activity

	// Warnings seeds the warning count of every session, e.g. with plugin
	// load failures.
	Warnings int

	// WatchIgnore lists files the session itself writes; changes to them
	// never retrigger a watched run.
	WatchIgnore []string

	// IgnorePatterns are the discovery ignore patterns, reused by Watch.
	IgnorePatterns []string
}

// Orchestrator runs test sessions.
type Orchestrator struct {
	cfg Config
	now func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, now: time.Now}
}

// Selection is the outcome of discovery plus selection.
type Selection struct {
	Discovery *discovery.Result

	// Runs are the selected runs in discovery order. Tag-skipped runs carry
	// a SkipReason.
	Runs []api.Run

	// Warnings are the non-fatal problems seen while selecting.
	Warnings []string
}

// RunIDs returns the ids of the selected runs.
func (s *Selection) RunIDs() []string {
	ids := make([]string, len(s.Runs))
	for i, r := range s.Runs {
		ids[i] = r.ID
	}
	return ids
}

// Report is the outcome of one session.
type Report struct {
	Selection *Selection
	Result    reporter.Result

	// HistoryID is the history record id, empty when history is disabled or
	// could not be written.
	HistoryID string

	// ExitCode is 0 when every selected run passed, otherwise 1.
	ExitCode int
}

// Select discovers runs below opts.Root and applies the selection steps. The
// returned error is a *keyword.ParseError, wraps discovery.ErrInvalidRoot or
// discovery.ErrNoScenarios, or wraps ErrUnknownScenario.
func (o *Orchestrator) Select(opts Options) (*Selection, error) {
	expr, err := keyword.Compile(opts.Keyword)
	if err != nil {
		return nil, err
	}

	if o.cfg.Activity != nil {
		o.cfg.Activity.Start()
	}
	result, err := o.cfg.Discoverer.Discover(opts.Root)
	if o.cfg.Activity != nil {
		o.cfg.Activity.Stop()
	}
	if err != nil {
		return nil, err
	}

	sel := &Selection{Discovery: result}
	for _, derr := range result.Errors {
		sel.Warnings = append(sel.Warnings, derr.Error())
	}
	sel.Warnings = append(sel.Warnings, result.Warnings...)

	runs, err := selectExplicit(result.Runs, opts.Scenarios)
	if err != nil {
		return nil, err
	}

	runs = filterRuns(runs, func(r api.Run) bool { return expr.Match(r.ID) })
	if !expr.IsEmpty() {
		logging.Debug(logSubsystem, "Keyword %s selected %d runs", expr.String(), len(runs))
	}

	if opts.RerunFailed {
		runs = o.selectFailed(sel, runs)
	}

	if len(opts.SkipTags) > 0 {
		for i := range runs {
			if runs[i].Scenario.HasTag(opts.SkipTags...) {
				runs[i].SkipReason = api.ReasonTag
			}
		}
	}

	sel.Runs = runs
	return sel, nil
}

func (o *Orchestrator) selectFailed(sel *Selection, runs []api.Run) []api.Run {
	if o.cfg.Cache == nil {
		return runs
	}
	if _, err := o.cfg.Cache.Load(); err != nil {
		sel.Warnings = append(sel.Warnings, err.Error())
	}

	failed := o.cfg.Cache.PreviouslyFailed()
	if len(failed) == 0 {
		msg := "no failed scenarios recorded in the cache, running the full selection"
		logging.Warn(logSubsystem, "%s", msg)
		sel.Warnings = append(sel.Warnings, msg)
		return runs
	}

	selected := filterRuns(runs, func(r api.Run) bool { return failed[r.ID] })
	logging.Info(logSubsystem, "Rerunning %d previously failed runs", len(selected))
	return selected
}

// selectExplicit keeps the runs named by ids, matching either the RunID or
// the base id. Every id must match at least one run.
func selectExplicit(runs []api.Run, ids []string) ([]api.Run, error) {
	wanted := make(map[string]bool)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if id == AllScenarios {
			return runs, nil
		}
		wanted[id] = true
	}
	if len(wanted) == 0 {
		return runs, nil
	}

	selected := filterRuns(runs, func(r api.Run) bool {
		return wanted[r.ID] || wanted[r.Scenario.BaseID()]
	})

	var unknown []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !containsRun(runs, id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, strings.Join(unknown, ", "))
	}
	return selected, nil
}

func containsRun(runs []api.Run, id string) bool {
	for _, r := range runs {
		if r.ID == id || r.Scenario.BaseID() == id {
			return true
		}
	}
	return false
}

func filterRuns(runs []api.Run, keep func(api.Run) bool) []api.Run {
	out := make([]api.Run, 0, len(runs))
	for _, r := range runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Run performs one complete session. A non-nil error means nothing was
// scheduled; see Select for the possible errors. Cancelling ctx interrupts
// the in-flight runs and skips the rest, and the session still persists and
// reports what it has.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	startedAt := o.now()

	sel, err := o.Select(opts)
	if err != nil {
		return nil, err
	}
	warnings := o.cfg.Warnings + len(sel.Warnings)
	priorHookErrors := len(o.cfg.Hooks.Errors())

	if o.cfg.Cache != nil && !opts.RerunFailed {
		if _, err := o.cfg.Cache.Load(); err != nil {
			warnings++
		}
	}

	o.cfg.Hooks.BeforeRun(api.RunContext{
		Root:        sel.Discovery.Root,
		RunIDs:      sel.RunIDs(),
		Parallel:    opts.Parallel,
		FailFast:    opts.FailFast,
		MaxFailures: opts.MaxFailures,
		RerunFailed: opts.RerunFailed,
		StartedAt:   startedAt,
	})

	logging.Info(logSubsystem, "Running %d of %d discovered runs with parallelism %d", len(sel.Runs), len(sel.Discovery.Runs), max(opts.Parallel, 1))

	observers := append([]scheduler.Observer{o.cfg.Hooks}, o.cfg.Observers...)
	sched := scheduler.New(o.cfg.Launcher, scheduler.Options{
		Parallel:    opts.Parallel,
		FailFast:    opts.FailFast,
		MaxFailures: opts.MaxFailures,
	}, observers...)
	outcomes := sched.Run(ctx, sel.Runs)

	if o.cfg.Cache != nil && len(outcomes) > 0 {
		if err := o.cfg.Cache.Record(outcomes); err != nil {
			warnings++
		}
	}

	report := &Report{
		Selection: sel,
		Result: reporter.Result{
			Outcomes:   outcomes,
			Timestamp:  startedAt,
			Duration:   o.now().Sub(startedAt),
			Warnings:   warnings,
			HookErrors: hookErrorsSince(o.cfg.Hooks, priorHookErrors),
		},
		ExitCode: 0,
	}
	if !report.Result.Summary().Successful() {
		report.ExitCode = 1
	}

	if o.cfg.Reporter != nil {
		if err := o.cfg.Reporter.Report(report.Result); err != nil {
			logging.Warn(logSubsystem, "Reporting failed: %v", err)
		}
	}

	if o.cfg.History != nil {
		// An interrupted session is still recorded.
		id, err := o.cfg.History.RecordRun(context.WithoutCancel(ctx), history.Record{
			StartedAt:  startedAt,
			FinishedAt: startedAt.Add(report.Result.Duration),
			Root:       sel.Discovery.Root,
			ExitCode:   report.ExitCode,
			Outcomes:   outcomes,
		})
		if err != nil {
			logging.Warn(logSubsystem, "Failed to record run history: %v", err)
		} else {
			report.HistoryID = id
			logging.Debug(logSubsystem, "Recorded run %s in history", id)
		}
	}

	o.cfg.Hooks.AfterRun(outcomes)

	return report, nil
}

// hookErrorsSince returns the hook failures recorded after the first skip,
// so that a watched session only reports its own.
func hookErrorsSince(d *hooks.Dispatcher, skip int) []string {
	errs := d.Errors()
	if len(errs) <= skip {
		return nil
	}
	out := make([]string, 0, len(errs)-skip)
	for _, e := range errs[skip:] {
		out = append(out, e.Error())
	}
	return out
}
