package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromErrorUnwrapsAppError(t *testing.T) {
	base := New("TEST_CODE", "something broke", http.StatusConflict)
	wrapped := fmt.Errorf("service: op: %w", base)

	appErr := FromError(wrapped)
	require.Equal(t, "TEST_CODE", appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.StatusCode)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(stderrors.New("db on fire"))
	require.Equal(t, ErrInternalServer.Code, appErr.Code)
	require.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
	require.EqualError(t, appErr.Unwrap(), "db on fire")
}

func TestWithInternalKeepsOriginalUntouched(t *testing.T) {
	cause := stderrors.New("root cause")
	augmented := ErrNotFound.WithInternal(cause)

	require.Nil(t, ErrNotFound.Internal)
	require.ErrorIs(t, augmented, cause)
	require.Contains(t, augmented.Error(), "root cause")
}
