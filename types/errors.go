package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide how to present them
type ErrorKind string

const (
	// ErrConfig marks an unsupported or malformed backend configuration. It is fatal
	// for the connection that hit it.
	ErrConfig ErrorKind = "config"
	// ErrIO marks a failure of the underlying storage
	ErrIO ErrorKind = "io"
	// ErrValidation marks a business rule violation detected before a write
	ErrValidation ErrorKind = "validation"
	// ErrNotFound marks a missing document or attachment
	ErrNotFound ErrorKind = "not_found"
	// ErrQuery marks a malformed query or an undefined comparison
	ErrQuery ErrorKind = "query"
)

// Error is the displayable error used across taskman. Header is a short title
// suitable for a dialog, Message carries the detail.
type Error struct {
	Kind    ErrorKind
	Header  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := string(e.Kind)
	if e.Header != "" {
		base = fmt.Sprintf("%s: %s", base, e.Header)
	}
	if e.Message != "" {
		base = fmt.Sprintf("%s: %s", base, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error without cause
func NewError(kind ErrorKind, header, message string) *Error {
	return &Error{Kind: kind, Header: header, Message: message}
}

// WrapError builds an Error around an underlying cause
func WrapError(kind ErrorKind, header string, cause error) *Error {
	return &Error{Kind: kind, Header: header, Cause: cause}
}

// ConfigError reports an unusable storage configuration
func ConfigError(message string) *Error {
	return &Error{Kind: ErrConfig, Header: "Invalid storage configuration", Message: message}
}

// ValidationError reports a rejected business operation
func ValidationError(header, message string) *Error {
	return &Error{Kind: ErrValidation, Header: header, Message: message}
}

// QueryError reports a malformed query
func QueryError(message string) *Error {
	return &Error{Kind: ErrQuery, Header: "Invalid query", Message: message}
}

// NotFoundError reports a missing document
func NotFoundError(id string) *Error {
	return &Error{Kind: ErrNotFound, Header: "Not found", Message: fmt.Sprintf("document %q not found", id)}
}

// AttachmentNotFoundError reports a missing attachment
func AttachmentNotFoundError(id, name string) *Error {
	return &Error{Kind: ErrNotFound, Header: "Not found", Message: fmt.Sprintf("attachment %q of document %q not found", name, id)}
}

// IOError wraps a storage failure
func IOError(operation string, cause error) *Error {
	return &Error{Kind: ErrIO, Header: operation + " failed", Cause: cause}
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotFound is shorthand for IsKind(err, ErrNotFound)
func IsNotFound(err error) bool {
	return IsKind(err, ErrNotFound)
}
