package models

import "time"

// Milestone statuses.
const (
	MilestoneOpen      = "open"
	MilestoneCompleted = "completed"
)

// Milestone marks a delivery target that test runs can be tied to.
type Milestone struct {
	BaseModel

	ProjectID   string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Project     *Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `gorm:"not null;default:open" json:"status"`
}
