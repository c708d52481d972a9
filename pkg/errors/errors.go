package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInternal    = NewError("INTERNAL_ERROR", "internal error")
	ErrValidation  = NewError("VALIDATION_ERROR", "validation failed")
	ErrNotFound    = NewError("NOT_FOUND", "resource not found")
	ErrUnavailable = NewError("UNAVAILABLE", "dependency unavailable")
)

// RetryableError is implemented by errors that know whether a later attempt can succeed.
type RetryableError interface {
	error
	IsRetryable() bool
}

type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies compare equal to the package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

// Wrap tags err with the code of appErr. A nil err stays nil.
func Wrap(err error, appErr *Error) error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Classify returns the first *Error in err's chain. Otherwise it returns the
// sentinel that err reports itself as through errors.Is, falling back to
// ErrInternal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, sentinel := range []*Error{ErrValidation, ErrNotFound, ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return ErrInternal
}

// Retryable reports whether the same input could succeed once a dependency recovers.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return Classify(err).Code == ErrUnavailable.Code
}
