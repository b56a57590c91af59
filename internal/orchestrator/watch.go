package orchestrator

import (
	"context"

	"github.com/eddiedunn/moltest/internal/watch"
	"github.com/eddiedunn/moltest/pkg/logging"
)

// WatchOptions tunes Watch.
type WatchOptions struct {
	// Options for the watcher; Ignore is filled in by Watch.
	Watcher watch.Options

	// OnReport is called after every session, e.g. to print a separator.
	OnReport func(*Report)
}

// Watch runs a session, then reruns it with the same options each time
// files below the discovered scenarios change, until ctx is cancelled. It
// returns the report of the last completed session. A selection error in
// the first session is returned immediately; in later sessions it is logged
// and the loop keeps waiting for the next change.
func (o *Orchestrator) Watch(ctx context.Context, opts Options, wopts WatchOptions) (*Report, error) {
	last, err := o.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	o.notify(wopts, last)
	dirs := watchDirs(last)

	for ctx.Err() == nil {
		if len(dirs) == 0 {
			logging.Warn(logSubsystem, "Nothing to watch below %s", opts.Root)
			return last, nil
		}

		changed, err := o.waitForChange(ctx, dirs, root(last, opts), wopts.Watcher)
		if err != nil {
			return last, err
		}
		if !changed {
			break
		}

		report, err := o.Run(ctx, opts)
		if err != nil {
			logging.Warn(logSubsystem, "Rerun aborted: %v", err)
			continue
		}
		if ctx.Err() == nil || len(report.Result.Outcomes) > 0 {
			last = report
			o.notify(wopts, last)
			dirs = watchDirs(last)
		}
	}
	return last, nil
}

func (o *Orchestrator) notify(wopts WatchOptions, r *Report) {
	if wopts.OnReport != nil {
		wopts.OnReport(r)
	}
}

// waitForChange blocks until one debounced change arrives. It reports false
// when ctx ended first.
func (o *Orchestrator) waitForChange(ctx context.Context, dirs []string, root string, wopts watch.Options) (bool, error) {
	wopts.Ignore = watch.NewIgnore(root, o.cfg.IgnorePatterns, o.cfg.WatchIgnore...)
	w := watch.New(dirs, wopts)
	changes, err := w.Start(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = w.Stop() }()

	logging.Info(logSubsystem, "Waiting for changes, interrupt to stop")
	select {
	case <-ctx.Done():
		return false, nil
	case c := <-changes:
		logging.Info(logSubsystem, "Detected changes in %d files, rerunning", len(c.Paths))
		return true, nil
	}
}

func root(r *Report, opts Options) string {
	if r.Selection != nil && r.Selection.Discovery != nil {
		return r.Selection.Discovery.Root
	}
	return opts.Root
}

// watchDirs returns the execution directory of every discovered scenario.
func watchDirs(r *Report) []string {
	if r.Selection == nil || r.Selection.Discovery == nil {
		return nil
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, s := range r.Selection.Discovery.Scenarios {
		if seen[s.Directory] {
			continue
		}
		seen[s.Directory] = true
		dirs = append(dirs, s.Directory)
	}
	return dirs
}
