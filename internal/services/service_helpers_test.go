package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kylejeon/testflow/internal/database"
	"github.com/kylejeon/testflow/internal/models"
	apperrors "github.com/kylejeon/testflow/pkg/errors"
)

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.FromError(err).Code
}

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    email,
		Password: "hashed-password",
		FullName: "Seed User",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User) *models.Project {
	t.Helper()

	project := &models.Project{
		Name:    "Payments Regression",
		OwnerID: owner.ID,
	}
	require.NoError(t, db.Create(project).Error)
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID,
		UserID:    owner.ID,
		Role:      models.RoleOwner,
	}).Error)
	return project
}

func seedCase(t *testing.T, db *gorm.DB, svc *TestCaseService, projectID, actorID string) *models.TestCase {
	t.Helper()

	testCase, err := svc.Create(t.Context(), projectID, actorID, CreateTestCaseInput{
		Title:          "Checkout declines expired card",
		Description:    "Card expiry is validated before authorization",
		Precondition:   "Cart contains one item",
		Steps:          "1. Pay with expired card",
		ExpectedResult: "Payment is declined with a clear message",
		Priority:       models.PriorityHigh,
		Folder:         "Checkout",
		Tags:           "payments,negative",
		Assignee:       actorID,
	})
	require.NoError(t, err)
	return testCase
}

func caseHistory(t *testing.T, db *gorm.DB, caseID string) []models.TestCaseHistory {
	t.Helper()

	var entries []models.TestCaseHistory
	require.NoError(t, db.
		Where("test_case_id = ?", caseID).
		Order("created_at ASC").
		Find(&entries).Error)
	return entries
}
