package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNoScenarios is returned when the root holds no usable scenario.
	ErrNoScenarios = errors.New("no molecule scenarios found")

	// ErrInvalidRoot is returned when the root is missing or not a directory.
	ErrInvalidRoot = errors.New("invalid discovery root")
)

// Error is a problem scoped to one scenario definition. It never aborts
// discovery; the affected scenario or run is left out of the result.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
