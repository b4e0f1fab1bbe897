package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	users, err := NewUserService(db)
	require.NoError(t, err)

	user, err := users.Register(t.Context(), "QA@Example.com", "s3cret-pass", "Taylor QA")
	require.NoError(t, err)
	require.Equal(t, "qa@example.com", user.Email)
	require.NotEqual(t, "s3cret-pass", user.Password)

	authed, err := users.Authenticate(t.Context(), "qa@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = users.Authenticate(t.Context(), "qa@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = users.Authenticate(t.Context(), "nobody@example.com", "s3cret-pass")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	users, err := NewUserService(db)
	require.NoError(t, err)

	_, err = users.Register(t.Context(), "qa@example.com", "s3cret-pass", "")
	require.NoError(t, err)

	_, err = users.Register(t.Context(), "QA@example.com", "another-pass", "")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	db := newTestDB(t)
	users, err := NewUserService(db)
	require.NoError(t, err)

	user, err := users.Register(t.Context(), "qa@example.com", "s3cret-pass", "")
	require.NoError(t, err)

	require.ErrorIs(t,
		users.ChangePassword(t.Context(), user.ID, "wrong", "new-password-1"),
		apperrors.ErrInvalidCredentials)

	require.NoError(t, users.ChangePassword(t.Context(), user.ID, "s3cret-pass", "new-password-1"))

	_, err = users.Authenticate(t.Context(), "qa@example.com", "new-password-1")
	require.NoError(t, err)
}
