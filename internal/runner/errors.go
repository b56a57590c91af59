package runner

import "fmt"

// LaunchError means the external process for a run could not be started.
type LaunchError struct {
	RunID string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.RunID, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
