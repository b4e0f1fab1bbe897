package models

import "time"

// User is an authenticated identity with a profile.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`

	Memberships []ProjectMember `gorm:"foreignKey:UserID" json:"-"`
	Sessions    []AuthSession   `gorm:"foreignKey:UserID" json:"-"`
}
