package users

import (
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/domain/access"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/identity"
	"metareview/internal/services/membership"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	identity   *identity.Service
	membership *membership.Service
	log        *logger.Logger
}

func New(id *identity.Service, ms *membership.Service, log *logger.Logger) *Handler {
	return &Handler{identity: id, membership: ms, log: log.With("handler", "users")}
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	me, err := h.identity.Me(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	u := me.User

	perms := []string{}
	if u.Profile != nil && u.Profile.Role != nil {
		perms = append(perms, u.Profile.Role.Permissions...)
	}
	resp := MeResponse{
		User:        dto.BuildUser(u),
		Permissions: perms,
		Access: AccessDTO{
			IsAdmin:           u.IsAdmin(),
			CanCreateProjects: u.CanCreateProjects(),
		},
		Projects: make([]ProjectAccessDTO, 0, len(me.Memberships)),
	}
	for _, m := range me.Memberships {
		pol := access.ComputePolicy(m)
		pa := ProjectAccessDTO{
			ProjectID:    m.ProjectID,
			Role:         pol.Role,
			CanInvite:    pol.CanInvite,
			Capabilities: pol.Capabilities,
		}
		if m.Project != nil {
			pa.Name = m.Project.Name
			pa.Status = m.Project.Status
		}
		resp.Projects = append(resp.Projects, pa)
	}

	c.JSON(http.StatusOK, resp)
}

// GET /home
func (h *Handler) Home(c *gin.Context) {
	o, err := h.membership.Overview(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
