package routes

import (
	"net/http"

	adminapi "metareview/internal/api/admin"
	articlesapi "metareview/internal/api/articles"
	authapi "metareview/internal/api/auth"
	catalogapi "metareview/internal/api/catalog"
	notificationsapi "metareview/internal/api/notifications"
	projectsapi "metareview/internal/api/projects"
	reviewapi "metareview/internal/api/review"
	usersapi "metareview/internal/api/users"
	"metareview/internal/app/http/middleware"
	"metareview/internal/observability"
	"metareview/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps carries everything the router needs. Handlers are built by the caller.
type Deps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	JWTSecret []byte

	Auth          *authapi.Handler
	Users         *usersapi.Handler
	Admin         *adminapi.Handler
	Projects      *projectsapi.Handler
	Articles      *articlesapi.Handler
	Catalog       *catalogapi.Handler
	Review        *reviewapi.Handler
	Notifications *notificationsapi.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(observability.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Input sanitization applies to public routes only.
	public := r.Group("/")
	public.Use(middleware.SanitizeInput())

	public.POST("/register", d.Auth.Register)
	public.POST("/login", d.Auth.Login)
	public.GET("/verify-email", d.Auth.VerifyEmail)
	public.POST("/resend-verification", d.Auth.ResendVerification)
	public.POST("/request-password-reset", d.Auth.RequestPasswordReset)
	public.POST("/reset-password", d.Auth.ResetPassword)

	public.GET("/auth/google", d.Auth.GoogleStart)
	public.GET("/auth/google/callback", d.Auth.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.Auth(d.JWTSecret), middleware.RequireActiveAccount(d.DB, d.Log))
	auth.GET("/me", d.Users.GetCurrentUser)
	auth.GET("/home", d.Users.Home)
	auth.POST("/change-password", d.Auth.ChangePassword)

	auth.GET("/projects", d.Projects.ListMine)
	auth.POST("/projects", d.Projects.Create)
	auth.GET("/projects/search", d.Projects.Search)
	auth.GET("/projects/:projectID", d.Projects.Get)
	auth.PUT("/projects/:projectID", d.Projects.Update)

	auth.POST("/projects/:projectID/join-requests", d.Projects.RequestJoin)
	auth.GET("/projects/:projectID/join-requests", d.Projects.PendingRequests)
	auth.POST("/join-requests/:requestID/approve", d.Projects.ApproveRequest)
	auth.POST("/join-requests/:requestID/reject", d.Projects.RejectRequest)

	auth.POST("/projects/:projectID/invitations", d.Projects.Invite)
	auth.POST("/invitations/:token/accept", d.Projects.AcceptInvitation)

	auth.GET("/projects/:projectID/members", d.Projects.Members)
	auth.PUT("/projects/:projectID/members/:userID", d.Projects.ChangeRole)
	auth.DELETE("/projects/:projectID/members/:userID", d.Projects.RemoveMember)
	auth.POST("/projects/:projectID/leave", d.Projects.Leave)

	auth.POST("/projects/:projectID/uploads", d.Articles.Upload)
	auth.GET("/projects/:projectID/uploads", d.Articles.ListUploads)
	auth.GET("/projects/:projectID/uploads/:uploadID", d.Articles.GetUpload)
	auth.GET("/projects/:projectID/uploads/:uploadID/source", d.Articles.SourceFile)
	auth.GET("/projects/:projectID/uploads/:uploadID/export", d.Articles.ExportUpload)
	auth.POST("/projects/:projectID/articles", d.Articles.Create)
	auth.DELETE("/articles/:articleID", d.Articles.Delete)
	auth.GET("/articles/:articleID/export", d.Articles.Export)

	auth.GET("/projects/:projectID/fields", d.Catalog.ListFields)
	auth.POST("/projects/:projectID/fields", d.Catalog.CreateField)
	auth.POST("/fields", d.Catalog.CreateGlobalField)
	auth.DELETE("/fields/:fieldID", d.Catalog.DeleteField)
	auth.GET("/projects/:projectID/templates", d.Catalog.ListTemplates)
	auth.POST("/projects/:projectID/templates", d.Catalog.CreateTemplate)
	auth.POST("/projects/:projectID/templates/:templateID/apply", d.Catalog.ApplyTemplate)
	auth.GET("/templates/:templateID", d.Catalog.GetTemplate)
	auth.DELETE("/templates/:templateID", d.Catalog.DeleteTemplate)

	auth.GET("/projects/:projectID/articles", d.Review.List)
	auth.GET("/projects/:projectID/tasks", d.Review.Tasks)
	auth.POST("/projects/:projectID/assignments", d.Review.Attach)
	auth.DELETE("/projects/:projectID/assignments", d.Review.Detach)
	auth.POST("/projects/:projectID/submit", d.Review.SubmitMany)
	auth.GET("/articles/:articleID", d.Review.Get)
	auth.GET("/articles/:articleID/history", d.Review.History)
	auth.PUT("/articles/:articleID/assignee", d.Review.Assign)
	auth.POST("/articles/:articleID/submit", d.Review.Submit)
	auth.POST("/articles/:articleID/approve", d.Review.ApproveArticle)
	auth.POST("/articles/:articleID/request-correction", d.Review.RequestArticleCorrection)
	auth.POST("/articles/:articleID/comments/read", d.Review.MarkCommentsRead)
	auth.PUT("/assignments/:assignmentID", d.Review.SetValue)
	auth.POST("/assignments/:assignmentID/approve", d.Review.ApproveField)
	auth.POST("/assignments/:assignmentID/request-correction", d.Review.RequestFieldCorrection)

	auth.GET("/notifications", d.Notifications.List)
	auth.GET("/notifications/unread-count", d.Notifications.UnreadCount)
	auth.POST("/notifications/read-all", d.Notifications.MarkAllRead)
	auth.POST("/notifications/:notificationID/read", d.Notifications.MarkRead)

	// Admin routes; permission checks happen in the identity service.
	admin := r.Group("/admin")
	admin.Use(middleware.Auth(d.JWTSecret), middleware.RequireActiveAccount(d.DB, d.Log))
	admin.GET("/dashboard", d.Admin.Dashboard)
	admin.GET("/users", d.Admin.ListUsers)
	admin.GET("/users/:id", d.Admin.GetUserDetails)
	admin.PUT("/users/:id/role", d.Admin.AssignRole)
	admin.PUT("/users/:id/active", d.Admin.SetActive)
	admin.GET("/roles", d.Admin.ListRoles)
	admin.PUT("/roles/:id/permissions", d.Admin.UpdateRolePermissions)
}
