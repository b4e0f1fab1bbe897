package models

// Project roles, ordered from most to least privileged.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// ValidMemberRole reports whether role is assignable through the membership surface.
// Owner is excluded: it is set once at project creation and never reassigned.
func ValidMemberRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ProjectMember grants a role to a user within a project.
// The (project_id, user_id) pair is unique at the storage layer.
type ProjectMember struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID    string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"user_id"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Role      string  `gorm:"not null" json:"role"`
	InvitedBy *string `gorm:"type:uuid" json:"invited_by,omitempty"`
}
