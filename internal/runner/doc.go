// Package runner launches the external test command for one run.
//
// Each run gets its own exec.Cmd with the run's execution directory as its
// working directory; the process-wide working directory is never changed, so
// any number of runs can be in flight at once. The child is placed in its
// own process group. When the run context is cancelled (user interrupt) the
// whole group receives SIGTERM and, after a grace period, SIGKILL.
//
// Combined stdout and stderr is handled according to a CaptureMode:
//
//   - CaptureDiscard keeps only the last lines for reports
//   - CaptureBuffered also prints the full output as one block per run
//   - CaptureStream forwards every line live, prefixed with the run id
//
// A command that cannot be started at all is reported as a *LaunchError.
package runner
