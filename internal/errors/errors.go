// Package errors provides the error kinds shared by kigen's packages and the
// CLI exit codes they map to.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the category of an error, which determines the CLI exit code.
type Kind int

const (
	// KindGeneral is an error that doesn't fit other categories.
	// CLI exit code: 1
	KindGeneral Kind = iota

	// KindInvalidArgs represents invalid input arguments, such as a timestamp
	// that is not an integer.
	// CLI exit code: 2
	KindInvalidArgs

	// KindNotFound represents a missing store key.
	// CLI exit code: 3
	KindNotFound

	// KindToken represents a token that failed to decode or verify.
	// CLI exit code: 4
	KindToken

	// KindStorage represents a local store failure.
	// CLI exit code: 5
	KindStorage

	// KindUnavailable represents a host facility (clipboard, terminal) that
	// could not be used.
	// CLI exit code: 6
	KindUnavailable
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindGeneral:
		return "General"
	case KindInvalidArgs:
		return "InvalidArgs"
	case KindNotFound:
		return "NotFound"
	case KindToken:
		return "Token"
	case KindStorage:
		return "Storage"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// ExitCode returns the CLI exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindInvalidArgs:
		return 2
	case KindNotFound:
		return 3
	case KindToken:
		return 4
	case KindStorage:
		return 5
	case KindUnavailable:
		return 6
	default:
		return 1
	}
}

// Error is a categorized error with an optional cause and suggestion.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	Details    map[string]any
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CLIExitCode returns the appropriate CLI exit code for this error.
func (e *Error) CLIExitCode() int {
	return e.Kind.ExitCode()
}

// WithDetails adds details to the error and returns it for chaining.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error and returns it for chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// Constructor functions

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgs creates an error for invalid arguments.
func InvalidArgs(format string, args ...any) *Error {
	return newf(KindInvalidArgs, format, args...)
}

// NotFound creates an error for missing keys.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Token creates an error for tokens that cannot be decoded or verified.
func Token(format string, args ...any) *Error {
	return newf(KindToken, format, args...)
}

// Unavailable creates an error for host facilities that cannot be used.
func Unavailable(format string, args ...any) *Error {
	return newf(KindUnavailable, format, args...)
}

// General creates a general error.
func General(format string, args ...any) *Error {
	return newf(KindGeneral, format, args...)
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// WrapStorage wraps an error as a local store failure.
func WrapStorage(err error, format string, args ...any) *Error {
	return Wrap(err, KindStorage, format, args...)
}

// WrapToken wraps an error as a token failure.
func WrapToken(err error, format string, args ...any) *Error {
	return Wrap(err, KindToken, format, args...)
}

// Helper functions for extracting error information

// GetKind extracts the Kind from anywhere in err's chain, returning
// KindGeneral if there is no *Error.
func GetKind(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// GetCLIExitCode extracts the CLI exit code from an error.
func GetCLIExitCode(err error) int {
	if err == nil {
		return 0
	}
	return GetKind(err).ExitCode()
}

// Is returns true if the error chain holds an *Error of the specified kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
