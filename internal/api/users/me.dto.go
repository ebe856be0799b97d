package users

import (
	"metareview/internal/api/dto"
	"metareview/internal/domain/access"
	"metareview/internal/domain/projects"
)

type MeResponse struct {
	User        dto.UserDTO        `json:"user"`
	Permissions []string           `json:"permissions"`
	Access      AccessDTO          `json:"access"`
	Projects    []ProjectAccessDTO `json:"projects"`
}

/* ---------- ACCESS ---------- */

type AccessDTO struct {
	IsAdmin           bool `json:"is_admin"`
	CanCreateProjects bool `json:"can_create_projects"`
}

type ProjectAccessDTO struct {
	ProjectID    uint                `json:"project_id"`
	Name         string              `json:"name"`
	Status       projects.Status     `json:"status"`
	Role         projects.Role       `json:"role"`
	CanInvite    bool                `json:"can_invite"`
	Capabilities []access.Capability `json:"capabilities"`
}
