package users

import (
	"time"

	"gorm.io/datatypes"
)

type RoleName string

const (
	RoleAdmin      RoleName = "admin"
	RoleResearcher RoleName = "researcher"
	RoleGuest      RoleName = "guest"
)

func (r RoleName) Valid() bool {
	switch r {
	case RoleAdmin, RoleResearcher, RoleGuest:
		return true
	default:
		return false
	}
}

type Permission string

const (
	PermCreateProject  Permission = "project.create"
	PermViewAllProject Permission = "project.view_all"
	PermManageUsers    Permission = "users.manage"
	PermManageCatalog  Permission = "catalog.manage_global"
	PermJoinProject    Permission = "project.join"
)

func (p Permission) Valid() bool {
	switch p {
	case PermCreateProject, PermViewAllProject, PermManageUsers, PermManageCatalog, PermJoinProject:
		return true
	default:
		return false
	}
}

// AllPermissions lists every grantable permission in display order.
func AllPermissions() []Permission {
	return []Permission{PermCreateProject, PermViewAllProject, PermManageUsers, PermManageCatalog, PermJoinProject}
}

type Role struct {
	ID          uint     `gorm:"primaryKey"`
	Name        RoleName `gorm:"type:varchar(32);not null;uniqueIndex:idx_roles_name"`
	Description string
	Permissions datatypes.JSONSlice[string]

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultRoles is the seed set created at startup.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        RoleAdmin,
			Description: "Full platform access",
			Permissions: datatypes.JSONSlice[string]{
				string(PermCreateProject), string(PermViewAllProject), string(PermManageUsers),
				string(PermManageCatalog), string(PermJoinProject),
			},
		},
		{
			Name:        RoleResearcher,
			Description: "Creates and leads projects",
			Permissions: datatypes.JSONSlice[string]{string(PermCreateProject), string(PermJoinProject)},
		},
		{
			Name:        RoleGuest,
			Description: "Joins projects by request or invitation",
			Permissions: datatypes.JSONSlice[string]{string(PermJoinProject)},
		},
	}
}
