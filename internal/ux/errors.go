package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that do not already carry one.
// Coded errors bring their own suggestions and are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *errors.VhubError
	if stderrors.As(err, &vErr) && len(vErr.Suggestions) > 0 {
		return err
	}

	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "permission denied") && strings.Contains(errMsg, "credentials"):
		return NewErrorWithSuggestion(err,
			"The credential file must be readable by you only; check ~/.vhub permissions or set store.path")
	case strings.Contains(errMsg, "permission denied"):
		return NewErrorWithSuggestion(err,
			"Check file permissions and ensure you have access to the required files/directories")
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		return NewErrorWithSuggestion(err,
			"Check your network connection and api.url (VHUB_API_URL)")
	case strings.Contains(errMsg, "x509") || strings.Contains(errMsg, "certificate"):
		return NewErrorWithSuggestion(err,
			"The API certificate was not trusted; check api.url points at the right host")
	case strings.Contains(errMsg, "unknown format"):
		return NewErrorWithSuggestion(err,
			"Use --format text, json or yaml")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
