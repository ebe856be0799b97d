package projects

import (
	"fmt"
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/membership"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *membership.Service
	log *logger.Logger
}

func New(svc *membership.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "projects")}
}

type ProjectDetailResponse struct {
	Project         dto.ProjectDTO            `json:"project"`
	Members         []dto.MemberDTO           `json:"members"`
	PendingRequests []dto.JoinRequestDTO      `json:"pending_requests"`
	StatusCounts    map[articles.Status]int64 `json:"status_counts"`
	Role            *projects.Role            `json:"role"`
	Capabilities    []string                  `json:"capabilities"`
}

type ProjectListItem struct {
	dto.ProjectDTO
	Role        projects.Role `json:"role"`
	MemberCount int64         `json:"member_count"`
}

type SearchItem struct {
	dto.ProjectDTO
	MemberCount    int64 `json:"member_count"`
	IsMember       bool  `json:"is_member"`
	PendingRequest bool  `json:"pending_request"`
}

// POST /projects answers 302 to the new project.
func (h *Handler) Create(c *gin.Context) {
	var in membership.ProjectInput
	if !respond.Bind(c, &in) {
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), respond.UserID(c), in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/projects/%d", p.ID))
}

// PUT /projects/:projectID
func (h *Handler) Update(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in membership.ProjectUpdate
	if !respond.Bind(c, &in) {
		return
	}
	p, err := h.svc.UpdateProject(c.Request.Context(), respond.UserID(c), id, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"project": dto.BuildProject(p)})
}

// GET /projects/:projectID
func (h *Handler) Get(c *gin.Context) {
	id, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	d, err := h.svc.GetProject(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	resp := ProjectDetailResponse{
		Project:         dto.BuildProject(&d.Project),
		Members:         dto.BuildMembers(d.Members),
		PendingRequests: dto.BuildJoinRequests(d.PendingRequests),
		StatusCounts:    d.StatusCounts,
		Capabilities:    []string{},
	}
	if d.Policy != nil {
		resp.Role = &d.Policy.Role
		for _, cp := range d.Policy.Capabilities {
			resp.Capabilities = append(resp.Capabilities, string(cp))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GET /projects?role=&status=&category=&q=
func (h *Handler) ListMine(c *gin.Context) {
	f := membership.ProjectFilter{
		Role:     projects.Role(c.Query("role")),
		Status:   projects.Status(c.Query("status")),
		Category: projects.Category(c.Query("category")),
		Query:    c.Query("q"),
	}
	if f.Role != "" && !f.Role.Valid() {
		respond.BadRequest(c, "unknown role "+string(f.Role))
		return
	}
	if f.Status != "" && !f.Status.Valid() {
		respond.BadRequest(c, "unknown status "+string(f.Status))
		return
	}
	if f.Category != "" && !f.Category.Valid() {
		respond.BadRequest(c, "unknown category "+string(f.Category))
		return
	}
	list, err := h.svc.ListMine(c.Request.Context(), respond.UserID(c), f)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]ProjectListItem, 0, len(list))
	for i := range list {
		out = append(out, ProjectListItem{
			ProjectDTO:  dto.BuildProject(&list[i].Project),
			Role:        list[i].Role,
			MemberCount: list[i].MemberCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// GET /projects/search?q=&category=
func (h *Handler) Search(c *gin.Context) {
	category := projects.Category(c.Query("category"))
	if category != "" && !category.Valid() {
		respond.BadRequest(c, "unknown category "+string(category))
		return
	}
	list, err := h.svc.Search(c.Request.Context(), respond.UserID(c), c.Query("q"), category)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]SearchItem, 0, len(list))
	for i := range list {
		out = append(out, SearchItem{
			ProjectDTO:     dto.BuildProject(&list[i].Project),
			MemberCount:    list[i].MemberCount,
			IsMember:       list[i].IsMember,
			PendingRequest: list[i].PendingRequest,
		})
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}
