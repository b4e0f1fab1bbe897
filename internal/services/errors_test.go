package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueConstraintError(t *testing.T) {
	require.False(t, isUniqueConstraintError(nil))
	require.False(t, isUniqueConstraintError(errors.New("connection reset")))

	require.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	require.True(t, isUniqueConstraintError(
		fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	require.True(t, isUniqueConstraintError(&mysql.MySQLError{Number: 1062}))
	require.False(t, isUniqueConstraintError(&mysql.MySQLError{Number: 1452}))

	// sqlite reports violations as text only.
	require.True(t, isUniqueConstraintError(
		errors.New("UNIQUE constraint failed: project_members.project_id, project_members.user_id")))
	require.False(t, isUniqueConstraintError(
		errors.New("NOT NULL constraint failed: test_cases.title")))
}
