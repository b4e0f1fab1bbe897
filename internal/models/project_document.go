package models

// ProjectDocument stores project documentation. The body is opaque HTML
// produced by the client's editor; the server never interprets it.
type ProjectDocument struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Title     string   `gorm:"not null" json:"title"`
	Body      string   `json:"body"`
	AuthorID  string   `gorm:"type:uuid;not null" json:"author_id"`
	Author    *User    `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
