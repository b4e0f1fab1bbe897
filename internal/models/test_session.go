package models

import "time"

// Exploratory session states.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// TestSession is an exploratory testing session with an append-only log.
type TestSession struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string   `gorm:"not null" json:"title"`
	Charter   string   `json:"charter"`
	Status    string   `gorm:"not null;default:active" json:"status"`

	StartedBy string     `gorm:"type:uuid;not null" json:"started_by"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`

	Logs []SessionLog `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

// Session log entry kinds.
const (
	LogNote     = "note"
	LogBug      = "bug"
	LogQuestion = "question"
)

// SessionLog is one timestamped entry in a session's log. Entries are
// append-only; they are never edited or individually deleted.
type SessionLog struct {
	BaseModel

	SessionID string `gorm:"type:uuid;not null;index" json:"session_id"`
	AuthorID  string `gorm:"type:uuid;not null" json:"author_id"`
	Kind      string `gorm:"not null;default:note" json:"kind"`
	Body      string `gorm:"not null" json:"body"`
}
