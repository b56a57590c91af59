package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
)

type jsonReport struct {
	Timestamp       string         `json:"timestamp"`
	OverallDuration Seconds        `json:"overall_duration"`
	TotalScenarios  int            `json:"total_scenarios"`
	Passed          int            `json:"passed"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	Error           int            `json:"error"`
	Scenarios       []jsonScenario `json:"scenarios"`
}

type jsonScenario struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	Status   api.Status `json:"status"`
	Duration Seconds    `json:"duration"`
	ExitCode *int       `json:"exit_code"`
	Reason   string     `json:"reason,omitempty"`
}

// WriteJSON writes the machine-readable report.
func WriteJSON(w io.Writer, r Result) error {
	s := r.Summary()
	report := jsonReport{
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339),
		OverallDuration: Seconds(r.Duration),
		TotalScenarios:  s.Total,
		Passed:          s.Passed,
		Failed:          s.Failed,
		Skipped:         s.Skipped,
		Error:           s.Errored,
		Scenarios:       make([]jsonScenario, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		report.Scenarios = append(report.Scenarios, jsonScenario{
			ID:       o.ID,
			Name:     o.Scenario,
			Role:     o.Role,
			Status:   o.Status,
			Duration: Seconds(o.Duration),
			ExitCode: o.ExitCode,
			Reason:   o.Reason,
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
