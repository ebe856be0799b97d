package notifications

import (
	"net/http"
	"strconv"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/notify"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	inbox *notify.Inbox
	log   *logger.Logger
}

func New(inbox *notify.Inbox, log *logger.Logger) *Handler {
	return &Handler{inbox: inbox, log: log.With("handler", "notifications")}
}

// GET /notifications?unread=1&limit=
func (h *Handler) List(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.inbox.List(c.Request.Context(), respond.UserID(c), unread, limit)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": dto.BuildNotifications(list)})
}

// GET /notifications/unread-count
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.inbox.UnreadCount(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// POST /notifications/:notificationID/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := respond.ID(c, "notificationID")
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), respond.UserID(c), id); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, nil)
}

// POST /notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), respond.UserID(c))
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"marked": n})
}
