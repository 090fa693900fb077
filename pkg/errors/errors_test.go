package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("fetch record: %w", ErrFetch.WithCause(cause))

	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrPublish)
	assert.Equal(t, "FETCH_FAILED", Code(err))
	assert.Equal(t, "", Code(cause))

	assert.Nil(t, Wrap(nil, ErrArchive))
	wrapped := Wrap(cause, ErrArchive)
	assert.ErrorIs(t, wrapped, ErrArchive)
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, ErrArchive.Cause)
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"fetch", ErrFetch, true},
		{"publish", ErrPublish, true},
		{"archive", ErrArchive, true},
		{"transform", ErrTransform, false},
		{"identifier", ErrFilename, false},
		{"validation", ErrValidation, false},
		{"forced fatal", ErrPublish.AsFatal(), false},
		{"forced retryable", ErrTransform.AsRetryable(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrNotFound.WithDetail("token", "10_123_abc")

	assert.Equal(t, "10_123_abc", err.Details["token"])
	assert.Empty(t, ErrNotFound.Details)
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrNotFound.WithDetail("token", "x"))
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.NotNil(t, resp["details"])

	resp = ToErrorResponse(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])

	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("boom")))
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("nil map write")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
	assert.Contains(t, appErr.Details, "stack_trace")
}
