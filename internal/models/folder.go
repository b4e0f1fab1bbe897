package models

// Folder is a named grouping label for test cases within a project.
type Folder struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_folder" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Name      string   `gorm:"not null;uniqueIndex:idx_project_folder" json:"name"`
}
