package api

import (
	"time"
)

// Scenario identifies one discoverable scenario definition. It is created
// during discovery and never modified afterwards.
type Scenario struct {
	// Role is the optional grouping label, empty for project level scenarios.
	Role string `json:"role,omitempty"`

	// Name is the scenario directory name, passed to the external command.
	Name string `json:"name"`

	// Directory is the working directory the external process runs in.
	Directory string `json:"directory"`

	// DefinitionPath is the path of the scenario's molecule.yml.
	DefinitionPath string `json:"definition_path"`

	// Tags are read from the scenario's moltest.tags file.
	Tags []string `json:"tags,omitempty"`
}

// BaseID returns role:scenario, or the bare scenario name without a role.
func (s Scenario) BaseID() string {
	if s.Role == "" {
		return s.Name
	}
	return s.Role + ":" + s.Name
}

// HasTag reports whether the scenario carries any of the given tags.
func (s Scenario) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, have := range s.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ParameterSet is a named variable binding read from a parameter file.
type ParameterSet struct {
	Name string                 `json:"name"`
	Vars map[string]interface{} `json:"vars,omitempty"`
}

// Run is the unit the scheduler executes.
type Run struct {
	// ID is the globally unique RunID, e.g. role:scenario[paramset].
	ID string `json:"id"`

	Scenario Scenario `json:"scenario"`

	// Params is nil for an unparameterized run.
	Params *ParameterSet `json:"params,omitempty"`

	// SkipReason, when set, records the run as skipped without launching it.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Status is the final state of one Run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// IsFailure reports whether the status counts as a failure for fail-fast,
// max-failures and rerun-failed purposes.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// Skip reasons recorded on skipped outcomes.
const (
	// ReasonEarlyStop marks runs never admitted after fail-fast or max-failures tripped.
	ReasonEarlyStop = "early stop"
	// ReasonInterrupted marks runs never admitted after the user interrupted.
	ReasonInterrupted = "interrupted"
	// ReasonTag marks runs deselected by a --skip tag.
	ReasonTag = "tag"
)

// Outcome is the result of executing one Run. Outcomes are immutable once
// recorded.
type Outcome struct {
	ID       string        `json:"id"`
	Scenario string        `json:"scenario"`
	Role     string        `json:"role,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`

	// ExitCode is nil when no process exit status exists (skipped or launch error).
	ExitCode *int `json:"exit_code"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Reason explains a skipped or error status.
	Reason string `json:"reason,omitempty"`

	// Output holds the tail of the combined process output.
	Output string `json:"output,omitempty"`
}

// EarlyStopped reports whether the run was never admitted because the
// scheduler stopped admitting new runs.
func (o Outcome) EarlyStopped() bool {
	return o.Status == StatusSkipped && (o.Reason == ReasonEarlyStop || o.Reason == ReasonInterrupted)
}

// SkippedOutcome builds the outcome of a run that never launched.
func SkippedOutcome(run Run, reason string) Outcome {
	return Outcome{
		ID:       run.ID,
		Scenario: run.Scenario.Name,
		Role:     run.Scenario.Role,
		Status:   StatusSkipped,
		Reason:   reason,
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// RunContext is handed to before_run hooks.
type RunContext struct {
	Root        string    `json:"root"`
	RunIDs      []string  `json:"run_ids"`
	Parallel    int       `json:"parallel"`
	FailFast    bool      `json:"fail_fast"`
	MaxFailures int       `json:"max_failures"`
	RerunFailed bool      `json:"rerun_failed"`
	StartedAt   time.Time `json:"started_at"`
}
