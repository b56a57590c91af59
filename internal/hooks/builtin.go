package hooks

import (
	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"
)

// logHook writes every lifecycle event to the log at info level.
type logHook struct{}

func (logHook) BeforeRun(rc api.RunContext) error {
	logging.Info(logSubsystem, "Run starting: %d scenarios, parallel=%d", len(rc.RunIDs), rc.Parallel)
	return nil
}

func (logHook) BeforeScenario(runID string) error {
	logging.Info(logSubsystem, "Scenario %s started", runID)
	return nil
}

func (logHook) AfterScenario(runID string, status api.Status) error {
	logging.Info(logSubsystem, "Scenario %s finished: %s", runID, status)
	return nil
}

func (logHook) AfterRun(outcomes []api.Outcome) error {
	s := api.Summarize(outcomes)
	logging.Info(logSubsystem, "Run finished: %d passed, %d failed, %d skipped, %d errors",
		s.Passed, s.Failed, s.Skipped, s.Errored)
	return nil
}
