package admin

import (
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/identity"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *identity.Service
	log *logger.Logger
}

func New(svc *identity.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "admin")}
}

type AdminMembership struct {
	ProjectID uint   `json:"project_id"`
	Project   string `json:"project"`
	Role      string `json:"role"`
	CanInvite bool   `json:"can_invite"`
}

// GET /admin/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Dashboard(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /admin/users?q=&role=
func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.svc.ListUsers(c.Request.Context(), respond.UserID(c), identity.UserFilter{
		Query: c.Query("q"),
		Role:  users.RoleName(c.Query("role")),
	})
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.BuildUsers(list))
}

// GET /admin/users/:id
func (h *Handler) GetUserDetails(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	d, err := h.svc.GetUser(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	ms := make([]AdminMembership, 0, len(d.Memberships))
	for _, m := range d.Memberships {
		am := AdminMembership{ProjectID: m.ProjectID, Role: string(m.Role), CanInvite: m.CanInvite}
		if m.Project != nil {
			am.Project = m.Project.Name
		}
		ms = append(ms, am)
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        dto.BuildUser(d.User),
		"memberships": ms,
	})
}

// PUT /admin/users/:id/role
func (h *Handler) AssignRole(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Role users.RoleName `json:"role" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	u, err := h.svc.AssignRole(c.Request.Context(), respond.UserID(c), id, body.Role)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"user": dto.BuildUser(u)})
}

// PUT /admin/users/:id/active
func (h *Handler) SetActive(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Active *bool `json:"active" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.SetActive(c.Request.Context(), respond.UserID(c), id, *body.Active); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"active": *body.Active})
}

// GET /admin/roles
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]dto.RoleDTO, 0, len(roles))
	for _, r := range roles {
		rd := dto.BuildRole(r.Role)
		n := r.Users
		rd.Users = &n
		out = append(out, rd)
	}
	perms := make([]string, 0)
	for _, p := range users.AllPermissions() {
		perms = append(perms, string(p))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out, "permissions": perms})
}

// PUT /admin/roles/:id/permissions
func (h *Handler) UpdateRolePermissions(c *gin.Context) {
	id, ok := respond.ID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Permissions []string `json:"permissions"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	r, err := h.svc.UpdateRolePermissions(c.Request.Context(), respond.UserID(c), id, body.Permissions)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"role": dto.BuildRole(*r)})
}
