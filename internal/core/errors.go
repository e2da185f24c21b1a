package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies review failures so callers can decide whether a retry
// makes sense. The pipeline itself never retries a whole review.
type ErrorKind string

const (
	// ErrUpstreamUnavailable means the source-control host was unreachable or
	// rejected the supplied credentials.
	ErrUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// ErrNotFound means the project or merge request does not exist.
	ErrNotFound ErrorKind = "not_found"
	// ErrModelUnavailable means both the primary and the fallback model call failed.
	ErrModelUnavailable ErrorKind = "model_unavailable"
	// ErrMalformedModelOutput means the model reply could not be parsed even
	// after the repair pass.
	ErrMalformedModelOutput ErrorKind = "malformed_model_output"
	// ErrReviewTimedOut means the caller deadline elapsed before aggregation.
	ErrReviewTimedOut ErrorKind = "review_timed_out"
	// ErrInvalidRequest means the request itself was rejected before any work.
	ErrInvalidRequest ErrorKind = "invalid_request"
)

// ReviewError carries an ErrorKind alongside a human-readable message and an
// optional cause.
type ReviewError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ReviewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ReviewError) Unwrap() error {
	return e.Err
}

// NewError builds a ReviewError without a cause.
func NewError(kind ErrorKind, message string) error {
	return &ReviewError{Kind: kind, Message: message}
}

// Errorf builds a ReviewError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &ReviewError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a ReviewError around a cause.
func WrapError(kind ErrorKind, message string, err error) error {
	return &ReviewError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain, or "" when the error is
// not a ReviewError.
func KindOf(err error) ErrorKind {
	var re *ReviewError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
