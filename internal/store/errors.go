package store

import (
	"errors"
	"fmt"

	apperrors "surveyflow/pkg/errors"
)

// ErrSchemaMismatch means a record carries a column the existing table does not have.
var ErrSchemaMismatch = errors.New("record does not match table schema")

type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports a schema mismatch as a validation failure and anything else as
// an unavailable store.
func (e *StoreError) Is(target error) bool {
	if errors.Is(e.Err, ErrSchemaMismatch) {
		return errors.Is(apperrors.ErrValidation, target)
	}
	return errors.Is(apperrors.ErrUnavailable, target)
}

func wrapErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Table: table, Err: err}
}
