package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eddiedunn/moltest/internal/discovery"
	"github.com/eddiedunn/moltest/internal/keyword"
	"github.com/eddiedunn/moltest/internal/orchestrator"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess: every selected run passed, or nothing was selected.
	ExitCodeSuccess = 0
	// ExitCodeFailures: a run failed, erred or was skipped by an early stop.
	ExitCodeFailures = 1
	// ExitCodeUsage: invalid flags, configuration or selection.
	ExitCodeUsage = 2
	// ExitCodeInternal: anything unexpected.
	ExitCodeInternal = 3
)

// ExitError makes a command exit with Code. A nil Err exits silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError marks a problem with how moltest was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var parseErr *keyword.ParseError
	var usageErr *usageError
	switch {
	case errors.As(err, &parseErr),
		errors.As(err, &usageErr),
		errors.Is(err, discovery.ErrNoScenarios),
		errors.Is(err, discovery.ErrInvalidRoot),
		errors.Is(err, orchestrator.ErrUnknownScenario):
		return ExitCodeUsage
	}

	// cobra reports unknown subcommands as plain errors.
	if strings.HasPrefix(err.Error(), "unknown command") {
		return ExitCodeUsage
	}
	return ExitCodeInternal
}

// errorMessage renders err for the terminal. Keyword errors carry a caret
// under the offending token.
func errorMessage(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return ""
	}
	var parseErr *keyword.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Error() + "\n  " + strings.ReplaceAll(parseErr.Pointer(), "\n", "\n  ")
	}
	return err.Error()
}
