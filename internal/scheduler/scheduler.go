package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const logSubsystem = "Scheduler"

// Process is a started external process.
type Process interface {
	// Wait blocks until the process exits. It returns the exit status with a
	// nil error, or an error when the process ended without an exit status.
	Wait() (int, error)

	// Output returns the retained tail of the process output.
	Output() string
}

// Launcher starts the external process for a run.
type Launcher interface {
	Start(ctx context.Context, run api.Run) (Process, error)
}

// Observer is notified at each run's lifecycle boundaries, on that run's
// worker. With more than one worker, calls for different runs interleave.
type Observer interface {
	BeforeScenario(runID string)
	AfterScenario(runID string, status api.Status)
}

// Options bounds a scheduling pass.
type Options struct {
	// Parallel is the maximum number of runs in flight. Values below 2 run
	// strictly sequentially.
	Parallel int

	// FailFast stops admission after the first failure.
	FailFast bool

	// MaxFailures stops admission once this many failures were seen. Zero
	// means unlimited.
	MaxFailures int
}

// Scheduler executes runs through a Launcher with bounded concurrency.
type Scheduler struct {
	launcher  Launcher
	opts      Options
	observers []Observer
	now       func() time.Time
}

// New creates a scheduler. Observers are notified in the given order.
func New(launcher Launcher, opts Options, observers ...Observer) *Scheduler {
	return &Scheduler{
		launcher:  launcher,
		opts:      opts,
		observers: observers,
		now:       time.Now,
	}
}

// Run executes runs and returns exactly one outcome per run, in the order of
// runs regardless of completion order.
//
// Stopping, whether from fail-fast, max-failures or ctx cancellation, only
// halts admission: runs already in flight finish and are recorded, and the
// runs never admitted are recorded as skipped. Cancelling ctx additionally
// interrupts the in-flight processes through the Launcher.
func (s *Scheduler) Run(ctx context.Context, runs []api.Run) []api.Outcome {
	st := &runState{
		outcomes:    make([]api.Outcome, len(runs)),
		failFast:    s.opts.FailFast,
		maxFailures: s.opts.MaxFailures,
	}

	if s.opts.Parallel <= 1 {
		for i, run := range runs {
			s.step(ctx, st, i, run)
		}
		return st.outcomes
	}

	// Admission is decided here, in selection order, once a slot is free.
	// A run handed to a worker is always executed.
	sem := semaphore.NewWeighted(int64(s.opts.Parallel))
	var g errgroup.Group
	for i, run := range runs {
		if run.SkipReason != "" {
			st.set(i, api.SkippedOutcome(run, run.SkipReason))
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			st.set(i, api.SkippedOutcome(run, api.ReasonInterrupted))
			continue
		}
		if ok, reason := st.admit(ctx); !ok {
			sem.Release(1)
			st.set(i, api.SkippedOutcome(run, reason))
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			s.execute(ctx, st, i, run)
			return nil
		})
	}
	_ = g.Wait()

	return st.outcomes
}

// step decides admission for one run and executes it if admitted. It is
// the sequential path.
func (s *Scheduler) step(ctx context.Context, st *runState, i int, run api.Run) {
	if run.SkipReason != "" {
		st.set(i, api.SkippedOutcome(run, run.SkipReason))
		return
	}
	if ok, reason := st.admit(ctx); !ok {
		st.set(i, api.SkippedOutcome(run, reason))
		return
	}
	s.execute(ctx, st, i, run)
}

func (s *Scheduler) execute(ctx context.Context, st *runState, i int, run api.Run) {
	o := api.Outcome{
		ID:        run.ID,
		Scenario:  run.Scenario.Name,
		Role:      run.Scenario.Role,
		StartedAt: s.now(),
	}

	proc, err := s.launcher.Start(ctx, run)
	if err != nil {
		logging.Warn(logSubsystem, "Run %s could not be launched: %v", run.ID, err)
		o.FinishedAt = s.now()
		o.Duration = o.FinishedAt.Sub(o.StartedAt)
		o.Status = api.StatusError
		o.Reason = err.Error()
		st.record(i, o)
		s.afterScenario(run.ID, o.Status)
		return
	}
	s.beforeScenario(run.ID)

	code, werr := proc.Wait()
	o.FinishedAt = s.now()
	o.Duration = o.FinishedAt.Sub(o.StartedAt)
	o.Output = proc.Output()

	switch {
	case werr != nil && ctx.Err() != nil:
		o.Status = api.StatusFailed
		o.Reason = api.ReasonInterrupted
	case werr != nil:
		o.Status = api.StatusError
		o.Reason = werr.Error()
	case code == 0:
		o.Status = api.StatusPassed
		o.ExitCode = api.IntPtr(0)
	default:
		o.Status = api.StatusFailed
		o.ExitCode = api.IntPtr(code)
		if ctx.Err() != nil {
			o.Reason = api.ReasonInterrupted
		}
	}

	logging.Debug(logSubsystem, "Run %s finished: %s in %s", run.ID, o.Status, o.Duration)
	st.record(i, o)
	s.afterScenario(run.ID, o.Status)
}

func (s *Scheduler) beforeScenario(runID string) {
	for _, obs := range s.observers {
		obs.BeforeScenario(runID)
	}
}

func (s *Scheduler) afterScenario(runID string, status api.Status) {
	for _, obs := range s.observers {
		obs.AfterScenario(runID, status)
	}
}

// runState is the mutable state shared by all workers of one pass.
type runState struct {
	failFast    bool
	maxFailures int

	mu       sync.Mutex
	failures int
	stopped  bool
	outcomes []api.Outcome
}

// admit reports whether a new run may start, and the skip reason if not.
func (st *runState) admit(ctx context.Context) (bool, string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ctx.Err() != nil {
		return false, api.ReasonInterrupted
	}
	if st.stopped {
		return false, api.ReasonEarlyStop
	}
	return true, ""
}

func (st *runState) set(i int, o api.Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.outcomes[i] = o
}

// record stores an executed outcome and updates failure accounting.
func (st *runState) record(i int, o api.Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.outcomes[i] = o
	if !o.Status.IsFailure() {
		return
	}
	st.failures++
	if st.stopped {
		return
	}
	switch {
	case st.failFast:
		st.stopped = true
		logging.Info(logSubsystem, "Fail-fast triggered by %s, no further runs will start", o.ID)
	case st.maxFailures > 0 && st.failures >= st.maxFailures:
		st.stopped = true
		logging.Info(logSubsystem, "Reached %d failures, no further runs will start", st.failures)
	}
}
