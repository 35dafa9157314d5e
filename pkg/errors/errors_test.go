package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", ErrNotFound("task"), CodeNotFound, http.StatusNotFound},
		{"invalid state", ErrInvalidStateTransition("wave already released"), CodeInvalidStateTransition, http.StatusConflict},
		{"ownership", ErrOwnershipMismatch("task held by W2"), CodeOwnershipMismatch, http.StatusForbidden},
		{"capacity", ErrCapacityExceeded("hold exceeded"), CodeCapacityExceeded, http.StatusUnprocessableEntity},
		{"validation", ErrValidation("bad input"), CodeValidationError, http.StatusBadRequest},
		{"internal default message", ErrInternal(""), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestAppErrorWrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := ErrInternal("failed to save task").Wrap(cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "connection reset")

	wrapped := fmt.Errorf("outer: %w", appErr)
	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInternalError, got.Code)
	assert.True(t, HasCode(wrapped, CodeInternalError))
	assert.False(t, HasCode(cause, CodeInternalError))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	appErr := ErrNotFoundWithID("wave", "WV-1")
	assert.Same(t, appErr, FromError(appErr))
	assert.Equal(t, "WV-1", appErr.Details["id"])

	plain := FromError(errors.New("boom"))
	assert.Equal(t, CodeInternalError, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.HTTPStatus)
}
