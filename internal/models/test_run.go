package models

import "gorm.io/datatypes"

// Test run lifecycle states.
const (
	RunActive = "active"
	RunClosed = "closed"
)

// TestRun executes a selected set of test cases against a build or milestone.
// CaseIDs stores the selection at creation time; per-case outcomes live in
// TestResult rows.
type TestRun struct {
	BaseModel

	ProjectID   string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Project     *Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	MilestoneID *string    `gorm:"type:uuid;index" json:"milestone_id,omitempty"`
	Milestone   *Milestone `gorm:"foreignKey:MilestoneID;constraint:OnDelete:SET NULL" json:"milestone,omitempty"`

	CaseIDs datatypes.JSON `json:"case_ids"`
	Status  string         `gorm:"not null;default:active" json:"status"`

	CreatedBy string `gorm:"type:uuid" json:"created_by"`

	Results []TestResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// TestResult is the recorded outcome for one case within one run.
// The (run_id, test_case_id) pair is unique at the storage layer.
type TestResult struct {
	BaseModel

	RunID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_run_case" json:"run_id"`
	TestCaseID string    `gorm:"type:uuid;not null;uniqueIndex:idx_run_case" json:"test_case_id"`
	TestCase   *TestCase `gorm:"foreignKey:TestCaseID" json:"test_case,omitempty"`

	Status          string `gorm:"not null" json:"status"`
	Notes           string `json:"notes"`
	ActorID         string `gorm:"type:uuid;not null" json:"actor_id"`
	DurationSeconds int    `json:"duration_seconds"`
}
