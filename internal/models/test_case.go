package models

import "gorm.io/datatypes"

// Test case priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Test case execution statuses.
const (
	StatusUntested = "untested"
	StatusPassed   = "passed"
	StatusFailed   = "failed"
	StatusPending  = "pending"
)

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ValidStatus reports whether the value is a known execution status.
func ValidStatus(s string) bool {
	switch s {
	case StatusUntested, StatusPassed, StatusFailed, StatusPending:
		return true
	}
	return false
}

// TestCase is the versioned record at the centre of the product. The ten
// tracked content fields (title through is_automated) are the ones diffed
// into history snapshots; status changes are tracked separately.
type TestCase struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"project,omitempty"`

	Title          string `gorm:"not null" json:"title"`
	Description    string `json:"description"`
	Precondition   string `json:"precondition"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	Priority       string `gorm:"not null;default:medium" json:"priority"`
	Folder         string `json:"folder"`
	Tags           string `json:"tags"` // comma-joined
	Assignee       string `json:"assignee"`
	IsAutomated    bool   `gorm:"default:false" json:"is_automated"`

	Status string `gorm:"not null;default:untested;index" json:"status"`

	Attachments datatypes.JSON `json:"attachments"`

	CreatedBy string `gorm:"type:uuid" json:"created_by"`
}

// Attachment describes one uploaded file linked to a test case.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}
