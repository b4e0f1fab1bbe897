package models

import "time"

// ProjectInvitation is a time-bounded, single-use grant of prospective
// project access to an email address. At most one row exists per
// (project, email) pair; re-inviting refreshes the row in place.
type ProjectInvitation struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_email" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"project,omitempty"`
	Email     string   `gorm:"not null;uniqueIndex:idx_project_email" json:"email"`

	Role     string `gorm:"not null" json:"role"`
	FullName string `json:"full_name"`

	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	InviterID string `gorm:"type:uuid;not null" json:"inviter_id"`
	Inviter   *User  `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`

	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at"`
}

// Pending reports whether the invitation is still redeemable at the given time.
func (i *ProjectInvitation) Pending(now time.Time) bool {
	return i != nil && i.AcceptedAt == nil && i.ExpiresAt.After(now)
}
