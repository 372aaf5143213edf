// Package errors provides the structured error type used across gorgon.
// Every error carries a code, a human message, an optional suggestion and
// an optional cause, so the CLI can render it for people or machines.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig   = "CONFIG"
	ErrSensor   = "SENSOR"
	ErrAgent    = "AGENT"
	ErrHub      = "HUB"
	ErrRegistry = "REGISTRY"
	ErrSSH      = "SSH"
	ErrExec     = "EXEC"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", indent(e.Cause.Error())))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if err, or any error it wraps, is a structured Error with the given code.
func IsCode(err error, code string) bool {
	for err != nil {
		var gErr *Error
		if !errors.As(err, &gErr) {
			return false
		}
		if gErr.Code == code {
			return true
		}
		err = gErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost structured Error in err's chain,
// or an empty string if there is none.
func CodeOf(err error) string {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return ""
}

// indent keeps nested structured errors readable when they are printed as a cause.
func indent(s string) string {
	s = strings.TrimRight(s, "\n")
	return strings.ReplaceAll(s, "\n", "\n  ")
}
