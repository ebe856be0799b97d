package projects

import (
	"time"

	"metareview/internal/domain/users"
)

type Role string

const (
	RoleOwner        Role = "OWNER"
	RoleSupervisor   Role = "SUPERVISOR"
	RoleCollaborator Role = "COLLABORATOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleSupervisor, RoleCollaborator:
		return true
	default:
		return false
	}
}

// Assignable reports whether r may be granted through invitations or role changes.
func (r Role) Assignable() bool {
	switch r {
	case RoleSupervisor, RoleCollaborator:
		return true
	default:
		return false
	}
}

type Membership struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_membership_user_project"`
	User      *users.User
	ProjectID uint     `gorm:"not null;uniqueIndex:idx_membership_user_project;index"`
	Project   *Project `gorm:"constraint:OnDelete:CASCADE"`
	Role      Role     `gorm:"type:varchar(16);not null;default:'COLLABORATOR'"`
	CanInvite bool     `gorm:"not null;default:false"`
	JoinedAt  time.Time
}

func (m Membership) IsOwner() bool      { return m.Role == RoleOwner }
func (m Membership) IsSupervisor() bool { return m.Role == RoleSupervisor }

// Leads is true for owners and supervisors.
func (m Membership) Leads() bool {
	return m.Role == RoleOwner || m.Role == RoleSupervisor
}
