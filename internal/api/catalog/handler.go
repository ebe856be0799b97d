package catalog

import (
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	reviewapi "metareview/internal/api/review"
	fields "metareview/internal/domain/catalog"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/catalog"
	"metareview/internal/services/review"

	"github.com/gin-gonic/gin"
)

// Handler serves metadata fields and search templates. Applying a template
// to articles goes through the review service, which owns assignments.
type Handler struct {
	svc    *catalog.Service
	review *review.Service
	log    *logger.Logger
}

func New(svc *catalog.Service, rv *review.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, review: rv, log: log.With("handler", "catalog")}
}

// GET /projects/:projectID/fields?category=&q=
func (h *Handler) ListFields(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	category := fields.Category(c.Query("category"))
	if category != "" && !category.Valid() {
		respond.BadRequest(c, "unknown category "+string(category))
		return
	}
	list, err := h.svc.ListFields(c.Request.Context(), respond.UserID(c), projectID, catalog.FieldFilter{
		Category: category,
		Query:    c.Query("q"),
	})
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": dto.BuildFields(list)})
}

// POST /projects/:projectID/fields
func (h *Handler) CreateField(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in catalog.FieldInput
	if !respond.Bind(c, &in) {
		return
	}
	f, err := h.svc.CreateField(c.Request.Context(), respond.UserID(c), projectID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "field": dto.BuildField(f)})
}

// POST /fields
func (h *Handler) CreateGlobalField(c *gin.Context) {
	var in catalog.FieldInput
	if !respond.Bind(c, &in) {
		return
	}
	f, err := h.svc.CreateGlobalField(c.Request.Context(), respond.UserID(c), in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "field": dto.BuildField(f)})
}

// DELETE /fields/:fieldID
func (h *Handler) DeleteField(c *gin.Context) {
	id, ok := respond.ID(c, "fieldID")
	if !ok {
		return
	}
	if err := h.svc.DeleteField(c.Request.Context(), respond.UserID(c), id); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// GET /projects/:projectID/templates
func (h *Handler) ListTemplates(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	list, err := h.svc.ListTemplates(c.Request.Context(), respond.UserID(c), projectID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]dto.TemplateDTO, 0, len(list))
	for i := range list {
		out = append(out, dto.BuildTemplate(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

// GET /templates/:templateID
func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := respond.ID(c, "templateID")
	if !ok {
		return
	}
	t, err := h.svc.GetTemplate(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.BuildTemplate(t))
}

// POST /projects/:projectID/templates
func (h *Handler) CreateTemplate(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in catalog.TemplateInput
	if !respond.Bind(c, &in) {
		return
	}
	t, err := h.svc.CreateTemplate(c.Request.Context(), respond.UserID(c), projectID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "template": dto.BuildTemplate(t)})
}

// DELETE /templates/:templateID
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := respond.ID(c, "templateID")
	if !ok {
		return
	}
	if err := h.svc.DeleteTemplate(c.Request.Context(), respond.UserID(c), id); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// POST /projects/:projectID/templates/:templateID/apply
func (h *Handler) ApplyTemplate(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	templateID, ok := respond.ID(c, "templateID")
	if !ok {
		return
	}
	var f review.TemplateFilter
	if c.Request.ContentLength > 0 && !respond.Bind(c, &f) {
		return
	}
	res, err := h.review.ApplyTemplate(c.Request.Context(), respond.UserID(c), projectID, templateID, f)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, reviewapi.AttachFields(res))
}
