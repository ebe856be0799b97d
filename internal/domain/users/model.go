package users

import (
	"strings"
	"time"
)

type User struct {
	ID           uint    `gorm:"primaryKey"`
	Username     string  `gorm:"not null;uniqueIndex:idx_users_username"`
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string `gorm:""`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub"`
	IsVerified   bool
	IsActive     bool `gorm:"not null;default:true"`

	Profile *Profile `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Profile struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_profiles_user"`
	FirstName string
	LastName  string
	RoleID    *uint
	Role      *Role

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Last names are stored upper-cased.
func (p *Profile) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.ToUpper(strings.TrimSpace(p.LastName))
}

func (u *User) RoleName() RoleName {
	if u.Profile == nil || u.Profile.Role == nil {
		return ""
	}
	return u.Profile.Role.Name
}

func (u *User) IsAdmin() bool {
	return u.RoleName() == RoleAdmin
}

// CanCreateProjects is true for administrators and researchers.
func (u *User) CanCreateProjects() bool {
	switch u.RoleName() {
	case RoleAdmin, RoleResearcher:
		return true
	default:
		return false
	}
}

func (u *User) HasPermission(p Permission) bool {
	if u.Profile == nil || u.Profile.Role == nil {
		return false
	}
	for _, got := range u.Profile.Role.Permissions {
		if got == string(p) {
			return true
		}
	}
	return false
}

func (u *User) FullName() string {
	if u.Profile == nil {
		return u.Username
	}
	name := strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
