package api

import "time"

// Summary counts outcomes per status.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Errored int

	// EarlyStopped counts the skipped runs that were never admitted.
	EarlyStopped int

	// Elapsed is the sum of the individual run durations.
	Elapsed time.Duration
}

// Summarize counts the given outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
			if o.EarlyStopped() {
				s.EarlyStopped++
			}
		case StatusError:
			s.Errored++
		}
		s.Elapsed += o.Duration
	}
	return s
}

// Successful reports whether the run should exit with status zero: nothing
// failed, nothing erred and nothing was cut off by an early stop. An empty
// selection is successful.
func (s Summary) Successful() bool {
	return s.Failed == 0 && s.Errored == 0 && s.EarlyStopped == 0
}

// FailedIDs returns the ids of failed and errored outcomes in order.
func FailedIDs(outcomes []Outcome) []string {
	var ids []string
	for _, o := range outcomes {
		if o.Status.IsFailure() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}
