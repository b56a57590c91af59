package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateParallel checks the concurrency limit bounds.
func ValidateParallel(n int) error {
	if n < 1 || n > MaxParallel {
		return ValidationError{
			Field:   "parallel",
			Value:   n,
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxParallel, n),
		}
	}
	return nil
}

// Validate checks every field and returns all problems found.
func Validate(c MoltestConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Parallel != 0 {
		if err := ValidateParallel(c.Parallel); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if c.MaxFailures < 0 {
		errs.Add("max_failures", "must not be negative", c.MaxFailures)
	}
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		errs.Add("command", "must name an executable")
	}
	if c.HookTimeout < 0 {
		errs.Add("hook_timeout", "must not be negative", c.HookTimeout)
	}

	seen := make(map[string]bool)
	for i, p := range c.Plugins {
		field := fmt.Sprintf("plugins[%d].name", i)
		if strings.TrimSpace(p.Name) == "" {
			errs.Add(field, "is required")
			continue
		}
		if seen[p.Name] {
			errs.Add(field, fmt.Sprintf("duplicate plugin name %q", p.Name), p.Name)
		}
		seen[p.Name] = true
		if p.Timeout < 0 {
			errs.Add(fmt.Sprintf("plugins[%d].timeout", i), "must not be negative", p.Timeout)
		}
	}

	return errs
}
