package shared

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrSubmissionInProgress = NewDomainError("SUBMISSION_IN_PROGRESS", "A submission is already in flight for this order")
	ErrNotSupported         = NewDomainError("NOT_SUPPORTED", "Operation not supported by this gateway")
)

// ErrSubmissionFailed is matched by every TransportError and StorageError,
// so callers can handle both gateway modes with a single errors.Is check.
var ErrSubmissionFailed = errors.New("submission failed")

// SubmissionErrorKind tells which persistence path produced a SubmissionError
type SubmissionErrorKind string

const (
	KindTransport SubmissionErrorKind = "transport"
	KindStorage   SubmissionErrorKind = "storage"
)

// SubmissionError is returned by a submission gateway when the order could
// not be persisted. Nothing is persisted when it is returned.
type SubmissionError struct {
	Kind SubmissionErrorKind
	// Op is the gateway operation, e.g. "submit", "get", "list"
	Op string
	// StatusCode is set for remote responses outside 2xx
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s error during %s", e.Kind, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// Is makes every SubmissionError match ErrSubmissionFailed
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}

// NewTransportError wraps a remote-mode failure
func NewTransportError(op string, statusCode int, cause error) *SubmissionError {
	return &SubmissionError{Kind: KindTransport, Op: op, StatusCode: statusCode, Cause: cause}
}

// NewStorageError wraps a local-mode storage failure
func NewStorageError(op string, cause error) *SubmissionError {
	return &SubmissionError{Kind: KindStorage, Op: op, Cause: cause}
}

// IsTransportError reports whether err carries a transport SubmissionError
func IsTransportError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se) && se.Kind == KindTransport
}

// IsStorageError reports whether err carries a storage SubmissionError
func IsStorageError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se) && se.Kind == KindStorage
}

// FieldError describes one failed rule on one form field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError blocks a submission. It never has side effects.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError creates a validation error from field errors
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// HasField reports whether the given field failed validation
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
