package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// History entry actions.
const (
	HistoryCreated  = "created"
	HistoryUpdated  = "updated"
	HistoryRestored = "restored"
	HistoryDeleted  = "deleted"
)

// HistoryNoChanges is recorded as the field list when a save changed nothing.
const HistoryNoChanges = "no changes"

// TestCaseHistory is one immutable audit row capturing a before/after
// snapshot pair for a test case mutation. Rows are append-only and survive
// deletion of the case they describe (no FK cascade); they carry their
// project id directly so access checks outlive the case row.
type TestCaseHistory struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID  string         `gorm:"type:uuid;not null;index" json:"project_id"`
	TestCaseID string         `gorm:"type:uuid;not null;index" json:"test_case_id"`
	ActorID    string         `gorm:"type:uuid;not null" json:"actor_id"`
	Action     string         `gorm:"not null;index" json:"action"`
	FieldNames string         `json:"field_names"` // comma-joined, or "no changes"
	Before     datatypes.JSON `json:"before"`      // null for created entries
	After      datatypes.JSON `json:"after"`       // null for deleted entries
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (h *TestCaseHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
