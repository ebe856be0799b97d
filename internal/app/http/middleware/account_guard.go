package middleware

import (
	"metareview/internal/api/respond"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/guard"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RequireActiveAccount rejects tokens whose account was disabled or deleted
// after the token was issued.
func RequireActiveAccount(db *gorm.DB, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := guard.User(c.Request.Context(), db, respond.UserID(c))
		if err != nil {
			if apierr.Is(err, apierr.CodeNotFound) {
				err = apierr.Unauthorized("account no longer exists")
			}
			respond.Error(c, log, err)
			return
		}
		if !u.IsActive {
			respond.Error(c, log, apierr.Forbidden("this account has been disabled"))
			return
		}
		c.Next()
	}
}
