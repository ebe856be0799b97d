package auth

import (
	"net/http"

	"metareview/internal/api/dto"
	"metareview/internal/api/respond"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/identity"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc    *identity.Service
	log    *logger.Logger
	google *Google
}

// New wires the auth endpoints. google may be nil when sign-in with Google
// is not configured.
func New(svc *identity.Service, log *logger.Logger, google *Google) *Handler {
	return &Handler{svc: svc, log: log.With("handler", "auth"), google: google}
}

// POST /register
func (h *Handler) Register(c *gin.Context) {
	var in identity.Registration
	if !respond.Bind(c, &in) {
		return
	}
	u, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	msg := "User registered successfully. Please check your email to verify your account."
	if u.IsVerified {
		msg = "User registered successfully. You can log in now."
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg, "user": dto.BuildUser(u)})
}

// POST /login
func (h *Handler) Login(c *gin.Context) {
	var in struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password" binding:"required"`
	}
	if !respond.Bind(c, &in) {
		return
	}
	login := firstNonEmpty(in.Login, in.Email, in.Username)
	sess, err := h.svc.Login(c.Request.Context(), login, in.Password)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "user": dto.BuildUser(sess.User)})
}

// GET /verify-email?token=
func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"message": "Email verified. You can log in now."})
}

// POST /resend-verification
func (h *Handler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.ResendVerification(c.Request.Context(), body.Email); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"message": "Verification email resent"})
}

// POST /request-password-reset always answers 200.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), body.Email); err != nil {
		h.log.Error("password reset request failed", "error", err)
	}
	respond.OK(c, gin.H{"message": "If your email exists, you'll receive a reset link."})
}

// POST /reset-password
func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), body.Token, body.NewPassword); err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"message": "Password reset successful"})
}

// POST /change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	var body struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if !respond.Bind(c, &body) {
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), respond.UserID(c), body.OldPassword, body.NewPassword)
	if err != nil {
		respond.Error(c, h.log, err)
		return
	}
	respond.OK(c, gin.H{"message": "Password changed successfully"})
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
