package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/taskman/types"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "search", "save")
	Cause       string   // The underlying cause
	Details     string   // Additional technical details
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}

	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}

	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError creates an error for invalid command input
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// WrapError turns a library error into a CLIError. The header and message
// of a *types.Error become the cause and details, and its kind picks the
// suggestions.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var typed *types.Error
	if !errors.As(err, &typed) {
		return &CLIError{
			Operation:  operation,
			Cause:      err.Error(),
			Underlying: err,
		}
	}

	details := typed.Message
	if details == "" && typed.Cause != nil {
		details = typed.Cause.Error()
	}
	return &CLIError{
		Operation:   operation,
		Cause:       typed.Header,
		Details:     details,
		Suggestions: suggestionsFor(typed.Kind),
		Underlying:  err,
	}
}

func suggestionsFor(kind types.ErrorKind) []string {
	switch kind {
	case types.ErrConfig:
		return []string{
			"Run 'taskman storage list' to review the storage configurations",
			"Run 'taskman storage select <id>' to switch to another storage",
		}
	case types.ErrQuery:
		return []string{
			`Grammar queries are wrapped in parentheses, e.g. (project: "Work" AND state: "Open")`,
			"Run 'taskman explain <query>' to see how a query is parsed",
		}
	case types.ErrNotFound:
		return []string{"Run 'taskman search' to list the available documents"}
	case types.ErrIO:
		return []string{"Check that the selected storage is reachable and writable"}
	}
	return nil
}
