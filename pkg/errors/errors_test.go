package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPanic(t *testing.T) {
	assert.NoError(t, FromPanic(nil))

	err := func() (err error) {
		defer func() {
			err = FromPanic(recover())
		}()
		var m map[string]int
		m["boom"] = 1
		return nil
	}()

	assert.Error(t, err)
	assert.True(t, IsPanic(err))
	assert.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, StackTrace(err), "TestFromPanic")
}

func TestFromPanic_StringValue(t *testing.T) {
	err := FromPanic("bad row")
	assert.ErrorContains(t, err, "panic: bad row")
	assert.False(t, IsPanic(stderrors.New("plain")))
	assert.Empty(t, StackTrace(stderrors.New("plain")))
}

type unavailableErr struct{}

func (unavailableErr) Error() string { return "socket closed" }

func (unavailableErr) Is(target error) bool { return stderrors.Is(ErrUnavailable, target) }

type retryableErr struct{ retry bool }

func (e retryableErr) Error() string     { return "try later" }
func (e retryableErr) IsRetryable() bool { return e.retry }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{name: "wrapped", err: fmt.Errorf("append: %w", Wrap(stderrors.New("refused"), ErrUnavailable)), code: ErrUnavailable.Code, retryable: true},
		{name: "validation", err: Wrap(stderrors.New("bad id"), ErrValidation), code: ErrValidation.Code},
		{name: "not found", err: Wrap(stderrors.New("no file"), ErrNotFound), code: ErrNotFound.Code},
		{name: "self reported", err: fmt.Errorf("read: %w", unavailableErr{}), code: ErrUnavailable.Code, retryable: true},
		{name: "plain", err: stderrors.New("boom"), code: ErrInternal.Code},
		{name: "marked retryable", err: retryableErr{retry: true}, code: ErrInternal.Code, retryable: true},
		{name: "marked final", err: Wrap(retryableErr{retry: false}, ErrUnavailable), code: ErrUnavailable.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Classify(tt.err).Code)
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}

	assert.Nil(t, Classify(nil))
	assert.False(t, Retryable(nil))
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrInternal.WithDetail("k", "v")
	assert.Empty(t, ErrInternal.Details)
}
