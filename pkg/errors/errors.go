package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeUpstream          ErrorType = "upstream"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypePersistence       ErrorType = "persistence"
	ErrorTypePartialComparison ErrorType = "partial_comparison"
	ErrorTypeInvalidInput      ErrorType = "invalid_input"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, code int, err error, message string) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Type: t, Message: message, Code: code, Err: err}
}

// NewUpstream reports a failed or timed out scraping call
func NewUpstream(err error, message string) *Error {
	return Wrap(ErrorTypeUpstream, 0, err, message)
}

// NewNotFound reports a handle the upstream knows nothing about
func NewNotFound(handle string) *Error {
	return New(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("profile %q not found", handle))
}

// NewPersistence reports a cache write failure
func NewPersistence(err error) *Error {
	return Wrap(ErrorTypePersistence, 0, err, "")
}

// NewInvalidInput reports a malformed request
func NewInvalidInput(message string) *Error {
	return New(ErrorTypeInvalidInput, http.StatusBadRequest, message)
}

// TypeOf returns the type of the first typed error in the chain
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	var pe *PartialComparisonError
	if stderrors.As(err, &pe) {
		return ErrorTypePartialComparison
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// HTTPStatus maps an error to the status code callers see
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case "":
		return http.StatusOK
	case ErrorTypeNotFound, ErrorTypePartialComparison:
		return http.StatusNotFound
	case ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PartialComparisonError is returned when too few handles of a comparison succeeded
type PartialComparisonError struct {
	Failed    []string
	Succeeded []string
	Reason    string
}

func (e *PartialComparisonError) Error() string {
	return fmt.Sprintf("%s error: %d of %d profiles failed: %s",
		ErrorTypePartialComparison, len(e.Failed), len(e.Failed)+len(e.Succeeded), e.Reason)
}
