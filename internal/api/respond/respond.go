// Package respond holds the JSON conventions shared by every handler.
package respond

import (
	"net/http"
	"strconv"

	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Error writes {success:false, error, code}. Untyped errors are logged and
// hidden behind a 500.
func Error(c *gin.Context, log *logger.Logger, err error) {
	if e, ok := apierr.As(err); ok {
		c.AbortWithStatusJSON(e.Status, gin.H{"success": false, "error": e.Error(), "code": e.Code})
		return
	}
	log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "internal server error",
		"code":    "internal",
	})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": msg, "code": apierr.CodeValidation})
}

// OK merges fields into {success:true}.
func OK(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// UserID is the authenticated caller set by the auth middleware.
func UserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}

// ID parses a positive numeric path parameter, answering 400 otherwise.
func ID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// Bind decodes the JSON body, answering 400 on malformed input.
func Bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		BadRequest(c, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// QueryID parses an optional numeric query parameter.
func QueryID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		BadRequest(c, "invalid "+name)
		return nil, false
	}
	id := uint(v)
	return &id, true
}
