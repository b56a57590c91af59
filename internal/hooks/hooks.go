package hooks

import (
	"fmt"

	"github.com/eddiedunn/moltest/internal/api"
)

// Recognized lifecycle callback names.
const (
	HookBeforeRun      = "before_run"
	HookBeforeScenario = "before_scenario"
	HookAfterScenario  = "after_scenario"
	HookAfterRun       = "after_run"
)

// BeforeRunHook is called once, before the first run is admitted.
type BeforeRunHook interface {
	BeforeRun(rc api.RunContext) error
}

// BeforeScenarioHook is called as soon as a run's process has started, on
// that run's worker.
type BeforeScenarioHook interface {
	BeforeScenario(runID string) error
}

// AfterScenarioHook is called when a run finished or failed to launch, on
// that run's worker.
type AfterScenarioHook interface {
	AfterScenario(runID string, status api.Status) error
}

// AfterRunHook is called once with the final ordered outcomes.
type AfterRunHook interface {
	AfterRun(outcomes []api.Outcome) error
}

// Funcs adapts plain functions to the hook interfaces. Nil fields are no-ops.
type Funcs struct {
	BeforeRunFunc      func(rc api.RunContext) error
	BeforeScenarioFunc func(runID string) error
	AfterScenarioFunc  func(runID string, status api.Status) error
	AfterRunFunc       func(outcomes []api.Outcome) error
}

func (f Funcs) BeforeRun(rc api.RunContext) error {
	if f.BeforeRunFunc == nil {
		return nil
	}
	return f.BeforeRunFunc(rc)
}

func (f Funcs) BeforeScenario(runID string) error {
	if f.BeforeScenarioFunc == nil {
		return nil
	}
	return f.BeforeScenarioFunc(runID)
}

func (f Funcs) AfterScenario(runID string, status api.Status) error {
	if f.AfterScenarioFunc == nil {
		return nil
	}
	return f.AfterScenarioFunc(runID, status)
}

func (f Funcs) AfterRun(outcomes []api.Outcome) error {
	if f.AfterRunFunc == nil {
		return nil
	}
	return f.AfterRunFunc(outcomes)
}

// Error records a callback that failed or panicked.
type Error struct {
	Module string
	Hook   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hook %s.%s failed: %v", e.Module, e.Hook, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
