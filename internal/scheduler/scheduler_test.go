package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eddiedunn/moltest/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	code  int
	err   error
	gate  <-chan struct{}
	delay time.Duration
	done  func()
}

func (p *fakeProcess) Wait() (int, error) {
	if p.gate != nil {
		<-p.gate
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.done != nil {
		p.done()
	}
	return p.code, p.err
}

func (p *fakeProcess) Output() string { return "output of run" }

type fakeLauncher struct {
	codes     map[string]int
	launchErr map[string]error
	gates     map[string]chan struct{}
	delays    map[string]time.Duration

	mu       sync.Mutex
	started  []string
	inFlight int
	peak     int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		codes:     map[string]int{},
		launchErr: map[string]error{},
		gates:     map[string]chan struct{}{},
		delays:    map[string]time.Duration{},
	}
}

func (f *fakeLauncher) Start(ctx context.Context, run api.Run) (Process, error) {
	if err := f.launchErr[run.ID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.started = append(f.started, run.ID)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	return &fakeProcess{
		code:  f.codes[run.ID],
		gate:  f.gates[run.ID],
		delay: f.delays[run.ID],
		done: func() {
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
		},
	}, nil
}

func (f *fakeLauncher) startedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

type recordingObserver struct {
	mu      sync.Mutex
	before  []string
	after   map[string]api.Status
	onAfter func(id string)
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{after: map[string]api.Status{}}
}

func (o *recordingObserver) BeforeScenario(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.before = append(o.before, id)
}

func (o *recordingObserver) AfterScenario(id string, status api.Status) {
	o.mu.Lock()
	o.after[id] = status
	hook := o.onAfter
	o.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}

func makeRuns(ids ...string) []api.Run {
	runs := make([]api.Run, len(ids))
	for i, id := range ids {
		runs[i] = api.Run{ID: id, Scenario: api.Scenario{Name: "default", Role: id}}
	}
	return runs
}

func statuses(outcomes []api.Outcome) map[string]api.Status {
	m := make(map[string]api.Status, len(outcomes))
	for _, o := range outcomes {
		m[o.ID] = o.Status
	}
	return m
}

func ids(outcomes []api.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.ID
	}
	return out
}

func TestRun_ClassifiesExitStatus(t *testing.T) {
	l := newFakeLauncher()
	l.codes["b"] = 2
	s := New(l, Options{Parallel: 1})

	outcomes := s.Run(context.Background(), makeRuns("a", "b"))

	require.Len(t, outcomes, 2)
	assert.Equal(t, api.StatusPassed, outcomes[0].Status)
	require.NotNil(t, outcomes[0].ExitCode)
	assert.Equal(t, 0, *outcomes[0].ExitCode)
	assert.Equal(t, api.StatusFailed, outcomes[1].Status)
	require.NotNil(t, outcomes[1].ExitCode)
	assert.Equal(t, 2, *outcomes[1].ExitCode)
	assert.Equal(t, "output of run", outcomes[1].Output)
	assert.Equal(t, "b", outcomes[1].Role)
	assert.False(t, outcomes[0].FinishedAt.Before(outcomes[0].StartedAt))
}

func TestRun_SequentialAndParallelAgree(t *testing.T) {
	runIDs := make([]string, 12)
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("r%02d", i)
	}
	configure := func() *fakeLauncher {
		l := newFakeLauncher()
		for i, id := range runIDs {
			if i%3 == 0 {
				l.codes[id] = 1
			}
			l.delays[id] = time.Duration(len(runIDs)-i) * time.Millisecond
		}
		return l
	}

	sequential := New(configure(), Options{Parallel: 1}).Run(context.Background(), makeRuns(runIDs...))
	parallel := New(configure(), Options{Parallel: 4}).Run(context.Background(), makeRuns(runIDs...))

	assert.Equal(t, statuses(sequential), statuses(parallel))
	assert.Equal(t, runIDs, ids(sequential))
	assert.Equal(t, runIDs, ids(parallel), "outcomes keep selection order regardless of completion order")
}

func TestRun_ConcurrencyBound(t *testing.T) {
	l := newFakeLauncher()
	runs := makeRuns("a", "b", "c", "d", "e", "f", "g", "h")
	for _, r := range runs {
		l.delays[r.ID] = 10 * time.Millisecond
	}

	outcomes := New(l, Options{Parallel: 3}).Run(context.Background(), runs)

	assert.Len(t, outcomes, len(runs))
	assert.LessOrEqual(t, l.peak, 3)
	assert.GreaterOrEqual(t, l.peak, 1)
}

func TestRun_FailFastSequential(t *testing.T) {
	l := newFakeLauncher()
	l.codes["r2"] = 1
	obs := newRecordingObserver()

	outcomes := New(l, Options{Parallel: 1, FailFast: true}, obs).Run(context.Background(), makeRuns("r1", "r2", "r3", "r4", "r5"))

	require.Len(t, outcomes, 5)
	assert.Equal(t, []string{"r1", "r2"}, l.startedIDs())
	assert.Equal(t, api.StatusPassed, outcomes[0].Status)
	assert.Equal(t, api.StatusFailed, outcomes[1].Status)
	for _, o := range outcomes[2:] {
		assert.Equal(t, api.StatusSkipped, o.Status, o.ID)
		assert.Equal(t, api.ReasonEarlyStop, o.Reason)
		assert.Nil(t, o.ExitCode)
		assert.True(t, o.EarlyStopped())
	}
	assert.Equal(t, []string{"r1", "r2"}, obs.before)
	assert.Len(t, obs.after, 2)
}

func TestRun_FailFastLetsInFlightRunsFinish(t *testing.T) {
	l := newFakeLauncher()
	gate := make(chan struct{})
	l.gates["r1"] = gate
	l.codes["r2"] = 1

	obs := newRecordingObserver()
	obs.onAfter = func(id string) {
		if id == "r2" {
			close(gate)
		}
	}

	outcomes := New(l, Options{Parallel: 2, FailFast: true}, obs).Run(context.Background(), makeRuns("r1", "r2", "r3", "r4", "r5"))

	require.Len(t, outcomes, 5)
	assert.Equal(t, api.StatusPassed, outcomes[0].Status, "in-flight run completes normally")
	assert.Equal(t, api.StatusFailed, outcomes[1].Status)
	for _, o := range outcomes[2:] {
		assert.Equal(t, api.StatusSkipped, o.Status, o.ID)
		assert.Equal(t, api.ReasonEarlyStop, o.Reason)
	}
	assert.ElementsMatch(t, []string{"r1", "r2"}, l.startedIDs())
}

func TestRun_MaxFailures(t *testing.T) {
	tests := []struct {
		name     string
		failing  []string
		max      int
		expected map[string]api.Status
	}{
		{
			name:    "stops after second failure",
			failing: []string{"a", "b"},
			max:     2,
			expected: map[string]api.Status{
				"a": api.StatusFailed, "b": api.StatusFailed,
				"c": api.StatusSkipped, "d": api.StatusSkipped, "e": api.StatusSkipped,
			},
		},
		{
			name:    "passes between failures",
			failing: []string{"a", "c"},
			max:     2,
			expected: map[string]api.Status{
				"a": api.StatusFailed, "b": api.StatusPassed, "c": api.StatusFailed,
				"d": api.StatusSkipped, "e": api.StatusSkipped,
			},
		},
		{
			name:    "zero is unlimited",
			failing: []string{"a", "b", "c"},
			max:     0,
			expected: map[string]api.Status{
				"a": api.StatusFailed, "b": api.StatusFailed, "c": api.StatusFailed,
				"d": api.StatusPassed, "e": api.StatusPassed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLauncher()
			for _, id := range tt.failing {
				l.codes[id] = 1
			}
			outcomes := New(l, Options{Parallel: 1, MaxFailures: tt.max}).Run(context.Background(), makeRuns("a", "b", "c", "d", "e"))

			assert.Len(t, outcomes, 5)
			assert.Equal(t, tt.expected, statuses(outcomes))
		})
	}
}

func TestRun_ParallelStopNeverSkipsEarlierRuns(t *testing.T) {
	tests := []struct {
		name     string
		parallel int
		opts     Options
	}{
		{"fail-fast with two workers", 2, Options{FailFast: true}},
		{"fail-fast with four workers", 4, Options{FailFast: true}},
		{"maxfail 1 with two workers", 2, Options{MaxFailures: 1}},
		{"maxfail 1 with four workers", 4, Options{MaxFailures: 1}},
		{"maxfail 2 with two workers", 2, Options{MaxFailures: 2}},
		{"maxfail 2 with four workers", 4, Options{MaxFailures: 2}},
	}

	runIDs := []string{"a", "b", "c", "d", "e", "f"}
	const firstFailure = 1

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for attempt := 0; attempt < 25; attempt++ {
				l := newFakeLauncher()
				l.delays["a"] = 5 * time.Millisecond
				l.codes["b"] = 1
				l.codes["d"] = 1

				opts := tt.opts
				opts.Parallel = tt.parallel
				outcomes := New(l, opts).Run(context.Background(), makeRuns(runIDs...))

				require.Len(t, outcomes, len(runIDs))
				assert.Equal(t, runIDs, ids(outcomes))
				for _, o := range outcomes[:firstFailure] {
					assert.Equal(t, api.StatusPassed, o.Status, "%s was started before the first failure", o.ID)
				}
				assert.Equal(t, api.StatusFailed, outcomes[firstFailure].Status)
				for _, o := range outcomes {
					if o.Status == api.StatusSkipped {
						assert.Equal(t, api.ReasonEarlyStop, o.Reason, o.ID)
					}
				}
			}
		})
	}
}

func TestRun_MaxFailuresParallel(t *testing.T) {
	tests := []struct {
		name     string
		parallel int
		max      int
		runs     []string
		failing  []string
		expected map[string]api.Status
	}{
		{
			name:     "slot free for earlier run",
			parallel: 4,
			max:      1,
			runs:     []string{"a", "b"},
			failing:  []string{"b"},
			expected: map[string]api.Status{"a": api.StatusPassed, "b": api.StatusFailed},
		},
		{
			name:     "every run fits the pool",
			parallel: 4,
			max:      1,
			runs:     []string{"a", "b", "c", "d"},
			failing:  []string{"d"},
			expected: map[string]api.Status{
				"a": api.StatusPassed, "b": api.StatusPassed,
				"c": api.StatusPassed, "d": api.StatusFailed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for attempt := 0; attempt < 25; attempt++ {
				l := newFakeLauncher()
				for _, id := range tt.failing {
					l.codes[id] = 1
				}
				for _, id := range tt.runs {
					if l.codes[id] == 0 {
						l.delays[id] = 2 * time.Millisecond
					}
				}

				outcomes := New(l, Options{Parallel: tt.parallel, MaxFailures: tt.max}).Run(context.Background(), makeRuns(tt.runs...))

				require.Len(t, outcomes, len(tt.runs))
				assert.Equal(t, tt.expected, statuses(outcomes))
			}
		})
	}
}

func TestRun_MaxFailuresLetsBusyWorkersFinish(t *testing.T) {
	l := newFakeLauncher()
	gate := make(chan struct{})
	l.codes["a"] = 1
	l.gates["b"] = gate

	obs := newRecordingObserver()
	obs.onAfter = func(id string) {
		if id == "a" {
			close(gate)
		}
	}

	outcomes := New(l, Options{Parallel: 2, MaxFailures: 1}, obs).Run(context.Background(), makeRuns("a", "b", "c", "d"))

	require.Len(t, outcomes, 4)
	assert.Equal(t, map[string]api.Status{
		"a": api.StatusFailed, "b": api.StatusPassed,
		"c": api.StatusSkipped, "d": api.StatusSkipped,
	}, statuses(outcomes))
	assert.ElementsMatch(t, []string{"a", "b"}, l.startedIDs())
}

func TestRun_LaunchError(t *testing.T) {
	l := newFakeLauncher()
	l.launchErr["b"] = errors.New("executable file not found")
	obs := newRecordingObserver()

	outcomes := New(l, Options{Parallel: 2}, obs).Run(context.Background(), makeRuns("a", "b", "c"))

	require.Len(t, outcomes, 3)
	assert.Equal(t, api.StatusError, outcomes[1].Status)
	assert.Nil(t, outcomes[1].ExitCode)
	assert.Contains(t, outcomes[1].Reason, "executable file not found")
	assert.Equal(t, api.StatusPassed, outcomes[0].Status)
	assert.Equal(t, api.StatusPassed, outcomes[2].Status, "launch errors do not abort other runs")

	assert.NotContains(t, obs.before, "b")
	assert.Equal(t, api.StatusError, obs.after["b"])
}

func TestRun_LaunchErrorCountsAsFailure(t *testing.T) {
	l := newFakeLauncher()
	l.launchErr["a"] = errors.New("boom")

	outcomes := New(l, Options{Parallel: 1, FailFast: true}).Run(context.Background(), makeRuns("a", "b"))

	assert.Equal(t, api.StatusError, outcomes[0].Status)
	assert.Equal(t, api.StatusSkipped, outcomes[1].Status)
}

func TestRun_PreSkippedRunsAreNotLaunched(t *testing.T) {
	l := newFakeLauncher()
	obs := newRecordingObserver()
	runs := makeRuns("a", "b", "c")
	runs[1].SkipReason = api.ReasonTag

	for _, parallel := range []int{1, 3} {
		t.Run(fmt.Sprintf("parallel=%d", parallel), func(t *testing.T) {
			outcomes := New(l, Options{Parallel: parallel}, obs).Run(context.Background(), runs)

			assert.Equal(t, api.StatusSkipped, outcomes[1].Status)
			assert.Equal(t, api.ReasonTag, outcomes[1].Reason)
			assert.False(t, outcomes[1].EarlyStopped())
			assert.NotContains(t, l.startedIDs(), "b")
			assert.NotContains(t, obs.after, "b")
		})
	}
}

func TestRun_CancelledContextSkipsEverything(t *testing.T) {
	l := newFakeLauncher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := New(l, Options{Parallel: 2}).Run(ctx, makeRuns("a", "b"))

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, api.StatusSkipped, o.Status)
		assert.Equal(t, api.ReasonInterrupted, o.Reason)
	}
	assert.Empty(t, l.startedIDs())
}

func TestRun_Empty(t *testing.T) {
	outcomes := New(newFakeLauncher(), Options{Parallel: 4}).Run(context.Background(), nil)
	assert.Empty(t, outcomes)
}
