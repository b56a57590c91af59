package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/eddiedunn/moltest/internal/cache"
	"github.com/eddiedunn/moltest/internal/config"
	"github.com/eddiedunn/moltest/internal/discovery"
	"github.com/eddiedunn/moltest/internal/history"
	"github.com/eddiedunn/moltest/internal/hooks"
	"github.com/eddiedunn/moltest/internal/orchestrator"
	"github.com/eddiedunn/moltest/internal/reporter"
	"github.com/eddiedunn/moltest/internal/runner"
	"github.com/eddiedunn/moltest/internal/scheduler"
	"github.com/eddiedunn/moltest/pkg/logging"

	"github.com/spf13/cobra"
)

type runOptions struct {
	keyword     string
	scenarios   []string
	skipTags    []string
	rerunFailed bool
	parallel    int
	failFast    bool
	maxFailures int
	rolesPath   string
	cacheFile   string
	history     bool
	watch       bool

	reports reporter.FileOptions
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the selected Molecule scenarios",
		Long: `Discovers scenarios below the project root, applies the selection flags
and runs each selected scenario with the configured command, by default
"molecule test -s <scenario>", from the scenario's role directory.

Selection happens in this order: --scenario, -k, --rerun-failed, --skip.

Exit status is 0 when every selected scenario passed or nothing was
selected, 1 when a scenario failed, erred or was not started after an early
stop, 2 for invalid flags or selections and 3 for internal errors.`,
		Example: `  moltest run
  moltest run -k "web and not slow" -p 4 --fail-fast
  moltest run --rerun-failed -j -x
  moltest run -s web:default,db:default[pg15] -vv`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.keyword, "keyword", "k", "", "only run scenarios matching the keyword expression")
	f.StringSliceVarP(&o.scenarios, "scenario", "s", nil, `comma separated RunIDs or role:scenario ids, or "all"`)
	f.StringSliceVar(&o.skipTags, "skip", nil, "report scenarios carrying any of these tags as skipped")
	f.BoolVarP(&o.rerunFailed, "rerun-failed", "f", false, "only run scenarios that failed in the last cached run")
	f.BoolVar(&o.rerunFailed, "lf", false, "alias for --rerun-failed")
	f.IntVarP(&o.parallel, "parallel", "p", 1, fmt.Sprintf("number of scenarios to run concurrently (1-%d)", config.MaxParallel))
	f.BoolVar(&o.failFast, "fail-fast", false, "stop starting scenarios after the first failure")
	f.IntVar(&o.maxFailures, "maxfail", 0, "stop starting scenarios after this many failures (0 is unlimited)")
	f.StringVarP(&o.rolesPath, "roles-path", "r", "", "exported as ANSIBLE_ROLES_PATH to every scenario")
	f.StringVar(&o.cacheFile, "cache-file", "", "result cache file, relative to the project root")
	f.BoolVar(&o.history, "history", false, "record this run in the run history database")
	f.BoolVar(&o.watch, "watch", false, "rerun whenever files below the discovered scenarios change")

	f.StringVarP(&o.reports.JSONPath, "json-report", "j", "", "write a JSON report")
	f.StringVarP(&o.reports.MarkdownPath, "md-report", "m", "", "write a Markdown report")
	f.StringVarP(&o.reports.JUnitPath, "junit-xml", "x", "", "write a JUnit XML report")
	f.Lookup("json-report").NoOptDefVal = reporter.DefaultJSONReport
	f.Lookup("md-report").NoOptDefVal = reporter.DefaultMarkdownReport
	f.Lookup("junit-xml").NoOptDefVal = reporter.DefaultJUnitReport

	return cmd
}

// applyConfig fills every flag the user did not set from the config file.
func (o *runOptions) applyConfig(cmd *cobra.Command, cfg config.MoltestConfig) {
	f := cmd.Flags()
	if !f.Changed("parallel") && cfg.Parallel > 0 {
		o.parallel = cfg.Parallel
	}
	if !f.Changed("fail-fast") {
		o.failFast = cfg.FailFast
	}
	if !f.Changed("maxfail") {
		o.maxFailures = cfg.MaxFailures
	}
	if !f.Changed("roles-path") {
		o.rolesPath = cfg.RolesPath
	}
	if !f.Changed("cache-file") {
		o.cacheFile = cfg.CacheFile
	}
	if !f.Changed("history") {
		o.history = cfg.History.Enabled
	}
}

func (o *runOptions) validate() error {
	if err := config.ValidateParallel(o.parallel); err != nil {
		return &usageError{err: fmt.Errorf("--parallel: %w", err)}
	}
	if o.maxFailures < 0 {
		return usageErrorf("--maxfail must not be negative, got %d", o.maxFailures)
	}
	if err := o.reports.Validate(); err != nil {
		return &usageError{err: err}
	}
	return nil
}

func (o *runOptions) run(cmd *cobra.Command, g *globalOptions) error {
	o.applyConfig(cmd, g.cfg)
	if err := o.validate(); err != nil {
		return err
	}

	root, err := g.projectRoot()
	if err != nil {
		return err
	}
	cachePath, err := g.rootRelative(o.cacheFile)
	if err != nil {
		return err
	}
	if cachePath == "" {
		cachePath, _ = g.rootRelative(config.DefaultCacheFile)
	}

	out := cmd.OutOrStdout()
	color := colorEnabled(out, g.noColor)

	dispatcher, pluginErrs := hooks.NewRegistry().Load(g.cfg.Plugins, g.cfg.HookTimeout)

	var store *history.Store
	var historyPath string
	if o.history {
		historyPath, err = g.rootRelative(g.cfg.History.Path)
		if err != nil {
			return err
		}
		if store, err = history.Open(historyPath); err != nil {
			logging.Warn("CLI", "Run history disabled: %v", err)
			store = nil
		}
		defer store.Close()
	}

	orch := orchestrator.New(orchestrator.Config{
		Discoverer: discovery.NewDiscoverer(g.cfg.IgnorePatterns()),
		Launcher: runner.NewLauncher(runner.Options{
			Command:   g.cfg.Command,
			RolesPath: o.rolesPath,
			Mode:      runner.CaptureModeFromVerbosity(g.verbosity),
			Output:    out,
		}),
		Cache:          cache.NewStore(cachePath),
		Hooks:          dispatcher,
		Observers:      []scheduler.Observer{reporter.NewProgress(out, color)},
		Reporter:       reporter.Multi{reporter.NewFiles(o.reports), reporter.NewConsole(out, color)},
		History:        store,
		Activity:       newActivity(cmd.ErrOrStderr(), g.verbosity, " Discovering scenarios..."),
		Warnings:       len(pluginErrs),
		WatchIgnore:    ownFiles(append(o.reports.Paths(), cachePath, historyPath)),
		IgnorePatterns: g.cfg.IgnorePatterns(),
	})

	opts := orchestrator.Options{
		Root:        root,
		Keyword:     o.keyword,
		Scenarios:   o.scenarios,
		SkipTags:    o.skipTags,
		RerunFailed: o.rerunFailed,
		Parallel:    o.parallel,
		FailFast:    o.failFast,
		MaxFailures: o.maxFailures,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var report *orchestrator.Report
	if o.watch {
		report, err = orch.Watch(ctx, opts, orchestrator.WatchOptions{
			OnReport: func(*orchestrator.Report) {
				fmt.Fprintln(out, "\n👀 Watching for changes, press Ctrl+C to stop")
			},
		})
	} else {
		report, err = orch.Run(ctx, opts)
	}
	if err != nil {
		return err
	}

	if ctx.Err() != nil && !o.watch {
		logging.Warn("CLI", "Interrupted, scenarios that had not started were skipped")
	}
	if report.ExitCode != ExitCodeSuccess {
		return &ExitError{Code: report.ExitCode}
	}
	return nil
}

// ownFiles makes the files a run writes absolute, so that watch mode can
// ignore them.
func ownFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

// colorEnabled reports whether styled output may be written to w.
func colorEnabled(w io.Writer, noColor bool) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return reporter.ColorEnabled(noColor, f)
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
