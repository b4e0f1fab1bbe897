package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kylejeon/testflow/internal/database"
	"github.com/kylejeon/testflow/internal/models"
)

func newSessionFixture(t *testing.T, clock *time.Time) (*SessionService, *models.User) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jwtSvc, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Clock:  func() time.Time { return *clock },
	})
	require.NoError(t, err)

	svc, err := NewSessionService(db, jwtSvc, SessionConfig{
		RefreshTokenTTL: 24 * time.Hour,
		Clock:           func() time.Time { return *clock },
	})
	require.NoError(t, err)

	user := &models.User{Email: "qa@example.com", Password: "hash", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	return svc, user
}

func TestCreateAndRefreshSessionRotatesToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, user := newSessionFixture(t, &now)

	pair, session, err := svc.CreateSession(user, SessionMetadata{IPAddress: "10.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, user.ID, session.UserID)

	rotated, refreshed, err := svc.RefreshSession(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, session.ID, refreshed.ID)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old refresh token is dead after rotation.
	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefreshSessionRejectsExpiredAndRevoked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, user := newSessionFixture(t, &now)

	pair, session, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(session.ID))
	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// Revoking twice reports not found.
	require.ErrorIs(t, svc.RevokeSession(session.ID), ErrSessionNotFound)

	pair2, _, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, _, err = svc.RefreshSession(pair2.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestCleanupExpiredRemovesDeadSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, user := newSessionFixture(t, &now)

	_, revoked, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.RevokeSession(revoked.ID))

	_, _, err = svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	now = now.Add(25 * time.Hour)
	removed, err = svc.CleanupExpired(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
