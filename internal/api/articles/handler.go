package articles

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/library"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc      *library.Service
	log      *logger.Logger
	maxBytes int64
}

func New(svc *library.Service, log *logger.Logger, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "articles"), maxBytes: maxUploadBytes}
}

// POST /projects/:projectID/uploads (multipart field "file").
// Answers 302 to the upload summary.
func (h *Handler) Upload(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   fmt.Sprintf("file exceeds %d bytes", h.maxBytes),
				"code":    "too_large",
			})
			return
		}
		respond.BadRequest(c, "a file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}

	up, err := h.svc.Upload(c.Request.Context(), respond.UserID(c), projectID, filepath.Base(fh.Filename), data)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/projects/%d/uploads/%d", projectID, up.ID))
}

// GET /projects/:projectID/uploads
func (h *Handler) ListUploads(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	list, err := h.svc.ListUploads(c.Request.Context(), respond.UserID(c), projectID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]dto.UploadDTO, 0, len(list))
	for i := range list {
		out = append(out, dto.BuildUpload(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"uploads": out})
}

// GET /projects/:projectID/uploads/:uploadID
func (h *Handler) GetUpload(c *gin.Context) {
	projectID, uploadID, ok := uploadParams(c)
	if !ok {
		return
	}
	up, err := h.svc.GetUpload(c.Request.Context(), respond.UserID(c), projectID, uploadID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.BuildUpload(up))
}

// GET /projects/:projectID/uploads/:uploadID/source
func (h *Handler) SourceFile(c *gin.Context) {
	projectID, uploadID, ok := uploadParams(c)
	if !ok {
		return
	}
	exp, err := h.svc.SourceFile(c.Request.Context(), respond.UserID(c), projectID, uploadID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	attach(c, exp)
}

// GET /projects/:projectID/uploads/:uploadID/export
func (h *Handler) ExportUpload(c *gin.Context) {
	projectID, uploadID, ok := uploadParams(c)
	if !ok {
		return
	}
	exp, err := h.svc.ExportUpload(c.Request.Context(), respond.UserID(c), projectID, uploadID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	attach(c, exp)
}

// POST /projects/:projectID/articles
func (h *Handler) Create(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in library.ArticleInput
	if !respond.Bind(c, &in) {
		return
	}
	a, err := h.svc.CreateArticle(c.Request.Context(), respond.UserID(c), projectID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "article": dto.BuildArticle(a)})
}

// DELETE /articles/:articleID
func (h *Handler) Delete(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	if err := h.svc.DeleteArticle(c.Request.Context(), respond.UserID(c), id); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// GET /articles/:articleID/export
func (h *Handler) Export(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	exp, err := h.svc.ExportArticle(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	attach(c, exp)
}

func uploadParams(c *gin.Context) (uint, uint, bool) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return 0, 0, false
	}
	uploadID, ok := respond.ID(c, "uploadID")
	if !ok {
		return 0, 0, false
	}
	return projectID, uploadID, true
}

func attach(c *gin.Context, exp *library.Export) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}
