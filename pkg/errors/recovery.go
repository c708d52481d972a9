package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

const (
	detailPanic = "panic"
	detailStack = "stack_trace"
)

// FromPanic turns a value returned by recover into an internal error that
// carries the stack of the panicking goroutine. A nil value yields nil.
func FromPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail(detailPanic, true).
		WithDetail(detailStack, string(debug.Stack()))
}

func IsPanic(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		panicked, _ := appErr.Details[detailPanic].(bool)
		return panicked
	}
	return false
}

// StackTrace returns the stack captured by FromPanic, if any.
func StackTrace(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		stack, _ := appErr.Details[detailStack].(string)
		return stack
	}
	return ""
}
