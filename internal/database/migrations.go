package database

import (
	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Ordering matters for foreign keys: referenced tables first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.AuthSession{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectInvitation{},
		&models.Folder{},
		&models.Milestone{},
		&models.TestCase{},
		&models.TestCaseHistory{},
		&models.TestCaseComment{},
		&models.TestRun{},
		&models.TestResult{},
		&models.TestSession{},
		&models.SessionLog{},
		&models.ProjectDocument{},
	)
}
