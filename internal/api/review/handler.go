package review

import (
	"net/http"
	"strconv"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/domain/articles"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/review"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *review.Service
	log *logger.Logger
}

func New(svc *review.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "review")}
}

// AttachFields flattens an attach result into response fields.
func AttachFields(res *review.AttachResult) gin.H {
	return gin.H{
		"assignments_created": res.AssignmentsCreated,
		"articles_updated":    res.ArticlesUpdated,
		"reactivated":         res.Reactivated,
		"notified":            res.Notified,
		"errors":              res.Errors,
	}
}

type commentBody struct {
	Comment string `json:"comment"`
}

// POST /projects/:projectID/assignments
func (h *Handler) Attach(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in review.AttachInput
	if !respond.Bind(c, &in) {
		return
	}
	res, err := h.svc.AttachFields(c.Request.Context(), respond.UserID(c), projectID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, AttachFields(res))
}

// DELETE /projects/:projectID/assignments
func (h *Handler) Detach(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var in review.DetachInput
	if !respond.Bind(c, &in) {
		return
	}
	res, err := h.svc.DetachFields(c.Request.Context(), respond.UserID(c), projectID, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{
		"removed":          res.Removed,
		"protected":        res.Protected,
		"reset_to_waiting": res.Reset,
		"errors":           res.Errors,
	})
}

// PUT /articles/:articleID/assignee; a null assignee_id unassigns.
func (h *Handler) Assign(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	var body struct {
		AssigneeID *uint `json:"assignee_id"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	a, err := h.svc.AssignArticle(c.Request.Context(), respond.UserID(c), id, body.AssigneeID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"article": dto.BuildArticle(a)})
}

// PUT /assignments/:assignmentID
func (h *Handler) SetValue(c *gin.Context) {
	id, ok := respond.ID(c, "assignmentID")
	if !ok {
		return
	}
	var in review.ValueInput
	if !respond.Bind(c, &in) {
		return
	}
	res, err := h.svc.SetFieldValue(c.Request.Context(), respond.UserID(c), id, in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{
		"assignment":     dto.BuildAssignment(&res.Assignment),
		"article_status": res.ArticleStatus,
		"progress":       res.Progress,
	})
}

// POST /articles/:articleID/submit
func (h *Handler) Submit(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	st, err := h.svc.SubmitForReview(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"new_status": st})
}

// POST /projects/:projectID/submit
func (h *Handler) SubmitMany(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	var body struct {
		ArticleIDs []uint `json:"article_ids"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	res, err := h.svc.SubmitMany(c.Request.Context(), respond.UserID(c), projectID, body.ArticleIDs)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"submitted": res.Submitted, "errors": res.Errors})
}

// POST /articles/:articleID/approve
func (h *Handler) ApproveArticle(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	var body commentBody
	if c.Request.ContentLength > 0 && !respond.Bind(c, &body) {
		return
	}
	n, err := h.svc.ApproveArticle(c.Request.Context(), respond.UserID(c), id, body.Comment)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"fields_auto_approved": n})
}

// POST /assignments/:assignmentID/approve
func (h *Handler) ApproveField(c *gin.Context) {
	id, ok := respond.ID(c, "assignmentID")
	if !ok {
		return
	}
	done, err := h.svc.ApproveField(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"article_fully_approved": done})
}

// POST /assignments/:assignmentID/request-correction
func (h *Handler) RequestFieldCorrection(c *gin.Context) {
	id, ok := respond.ID(c, "assignmentID")
	if !ok {
		return
	}
	var body commentBody
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.RequestFieldCorrection(c.Request.Context(), respond.UserID(c), id, body.Comment); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// POST /articles/:articleID/request-correction
func (h *Handler) RequestArticleCorrection(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	var body commentBody
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.RequestArticleCorrection(c.Request.Context(), respond.UserID(c), id, body.Comment); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// GET /projects/:projectID/articles?status=&assignee=&q=&page=&page_size=
func (h *Handler) List(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	status := articles.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		respond.BadRequest(c, "unknown status "+string(status))
		return
	}
	assignee, ok := respond.QueryID(c, "assignee")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	res, err := h.svc.ListArticles(c.Request.Context(), respond.UserID(c), projectID, review.ArticleFilter{
		Status:     status,
		AssigneeID: assignee,
		Query:      c.Query("q"),
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	items := make([]dto.ArticleDTO, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, dto.BuildArticleWithProgress(&res.Items[i].Article, res.Items[i].Progress))
	}
	c.JSON(http.StatusOK, gin.H{
		"articles":      items,
		"total":         res.Total,
		"page":          res.Page,
		"page_size":     res.PageSize,
		"status_counts": res.StatusCounts,
	})
}

// GET /articles/:articleID
func (h *Handler) Get(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	d, err := h.svc.GetArticle(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ArticleDetailDTO{
		ArticleDTO:  dto.BuildArticleWithProgress(&d.Article, d.Progress),
		BibTeX:      d.Article.BibTeX,
		Metadata:    dto.BuildMetadata(&d.Article),
		Assignments: dto.BuildAssignments(d.Article.Assignments),
		Comments:    dto.BuildComments(d.Comments),
		History:     dto.BuildChanges(d.History),
		Role:        d.Policy.Role,
		CanWork:     d.CanWork,
		Permissions: d.Policy.Capabilities,
	})
}

// GET /articles/:articleID/history
func (h *Handler) History(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	list, err := h.svc.History(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": dto.BuildChanges(list)})
}

// GET /projects/:projectID/tasks?user=
func (h *Handler) Tasks(c *gin.Context) {
	projectID, ok := respond.ID(c, "projectID")
	if !ok {
		return
	}
	who, ok := respond.QueryID(c, "user")
	if !ok {
		return
	}
	userID := respond.UserID(c)
	if who != nil {
		userID = *who
	}
	list, err := h.svc.Tasks(c.Request.Context(), respond.UserID(c), projectID, userID)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	out := make([]dto.ArticleDTO, 0, len(list))
	for i := range list {
		out = append(out, dto.BuildArticleWithProgress(&list[i], articles.ComputeProgress(list[i].Assignments)))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// POST /articles/:articleID/comments/read
func (h *Handler) MarkCommentsRead(c *gin.Context) {
	id, ok := respond.ID(c, "articleID")
	if !ok {
		return
	}
	n, err := h.svc.MarkCommentsRead(c.Request.Context(), respond.UserID(c), id)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"marked": n})
}
