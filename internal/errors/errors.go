package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials ErrorCode = "AUTH-001"
	ErrCodeSessionExpired     ErrorCode = "AUTH-002"
	ErrCodeNotLoggedIn        ErrorCode = "AUTH-003"

	// Network errors (NET-001 to NET-099)
	ErrCodeTransportUnreachable ErrorCode = "NET-001"
	ErrCodeUnexpectedStatus     ErrorCode = "NET-002"

	// Credential store errors (STORE-001 to STORE-099)
	ErrCodeStorageCorruption ErrorCode = "STORE-001"
	ErrCodeStoreUnavailable  ErrorCode = "STORE-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
)

const docsBase = "https://github.com/felixgeelhaar/vhub#"

// VhubError represents an enhanced error with code, suggestions, and documentation
type VhubError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *VhubError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *VhubError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a VhubError carrying the same code.
// This lets callers compare against the sentinel values below with errors.Is.
func (e *VhubError) Is(target error) bool {
	t, ok := target.(*VhubError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Cause == nil
}

// New creates a new VhubError
func New(code ErrorCode, message string) *VhubError {
	return &VhubError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new VhubError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *VhubError {
	return &VhubError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *VhubError) WithSuggestion(suggestion string) *VhubError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *VhubError) WithSuggestions(suggestions ...string) *VhubError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *VhubError) WithDocs(url string) *VhubError {
	e.DocsURL = url
	return e
}

// Sentinels for errors.Is comparisons. They match any VhubError with the same code.
var (
	ErrInvalidCredentials   = &VhubError{Code: ErrCodeInvalidCredentials}
	ErrSessionExpired       = &VhubError{Code: ErrCodeSessionExpired}
	ErrNotLoggedIn          = &VhubError{Code: ErrCodeNotLoggedIn}
	ErrTransportUnreachable = &VhubError{Code: ErrCodeTransportUnreachable}
	ErrUnexpectedStatus     = &VhubError{Code: ErrCodeUnexpectedStatus}
	ErrStorageCorruption    = &VhubError{Code: ErrCodeStorageCorruption}
	ErrStoreUnavailable     = &VhubError{Code: ErrCodeStoreUnavailable}
	ErrConfigInvalid        = &VhubError{Code: ErrCodeConfigInvalid}
)

// CodeOf returns the code of the first VhubError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var vErr *VhubError
	if errors.As(err, &vErr) {
		return vErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a VhubError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Common error constructors for frequently used errors

// NewInvalidCredentialsError creates a rejected-login error
func NewInvalidCredentialsError(cause error) *VhubError {
	return Wrap(ErrCodeInvalidCredentials, "login rejected", cause).
		WithSuggestion("Check the email address and password").
		WithSuggestion("Run 'vhub auth register' if you do not have an account yet")
}

// NewTransportUnreachableError creates a network-level failure error
func NewTransportUnreachableError(url string, cause error) *VhubError {
	return Wrap(ErrCodeTransportUnreachable, fmt.Sprintf("cannot reach %s", url), cause).
		WithSuggestion("Check your network connection").
		WithSuggestion("Verify api.url in ~/.vhub/config.yaml or VHUB_API_URL").
		WithDocs(docsBase + "configuration")
}

// NewSessionExpiredError creates the error returned after the server rejected a stored credential
func NewSessionExpiredError(path string) *VhubError {
	return New(ErrCodeSessionExpired, fmt.Sprintf("session expired or revoked (request to %s was unauthorized)", path)).
		WithSuggestion("Run 'vhub auth login' to sign in again")
}

// NewNotLoggedInError creates an error for operations that need a stored credential
func NewNotLoggedInError() *VhubError {
	return New(ErrCodeNotLoggedIn, "not logged in").
		WithSuggestion("Run 'vhub auth login' first")
}

// NewUnexpectedStatusError creates an error for non-2xx responses that are not handled elsewhere
func NewUnexpectedStatusError(status int, detail string) *VhubError {
	msg := fmt.Sprintf("request failed with status %d", status)
	if detail != "" {
		msg += ": " + detail
	}
	return New(ErrCodeUnexpectedStatus, msg)
}

// NewStorageCorruptionError creates an error for an unparseable persisted user record
func NewStorageCorruptionError(key string, cause error) *VhubError {
	return Wrap(ErrCodeStorageCorruption, fmt.Sprintf("stored value for %q is not parseable", key), cause).
		WithSuggestion("Run 'vhub auth logout' to reset stored credentials")
}

// NewStoreUnavailableError creates an error for a credential backend that cannot be read or written
func NewStoreUnavailableError(backend string, cause error) *VhubError {
	return Wrap(ErrCodeStoreUnavailable, fmt.Sprintf("credential store %s unavailable", backend), cause).
		WithSuggestion("Check store.backend and store.path in ~/.vhub/config.yaml").
		WithDocs(docsBase + "credential-storage")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *VhubError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'vhub config view' to inspect the effective configuration").
		WithDocs(docsBase + "configuration")
}
