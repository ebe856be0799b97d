// Package dto holds the JSON shapes returned by the API and the builders
// that map domain rows onto them.
package dto

import (
	"time"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
)

/* ---------- USERS ---------- */

type UserDTO struct {
	ID           uint    `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	FullName     string  `json:"full_name"`
	Role         string  `json:"role"`
	AuthProvider string  `json:"auth_provider"`
	IsVerified   bool    `json:"is_verified"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    *string `json:"created_at,omitempty"`
}

type UserLiteDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type RoleDTO struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	Users       *int64   `json:"users,omitempty"`
}

/* ---------- PROJECTS ---------- */

type ProjectDTO struct {
	ID             uint              `json:"id"`
	Name           string            `json:"name"`
	Category       projects.Category `json:"category"`
	Status         projects.Status   `json:"status"`
	Description    string            `json:"description"`
	OwnerID        uint              `json:"owner_id"`
	Owner          *UserLiteDTO      `json:"owner,omitempty"`
	TotalArticles  int               `json:"total_articles"`
	WorkedArticles int               `json:"worked_articles"`
	Progress       float64           `json:"progress"`
	CreatedAt      time.Time         `json:"created_at"`
}

type MemberDTO struct {
	UserID       uint                `json:"user_id"`
	User         *UserLiteDTO        `json:"user,omitempty"`
	Role         projects.Role       `json:"role"`
	CanInvite    bool                `json:"can_invite"`
	JoinedAt     time.Time           `json:"joined_at"`
	Capabilities []access.Capability `json:"capabilities"`
}

type JoinRequestDTO struct {
	ID          uint                   `json:"id"`
	ProjectID   uint                   `json:"project_id"`
	User        *UserLiteDTO           `json:"user,omitempty"`
	Status      projects.RequestStatus `json:"status"`
	Message     string                 `json:"message"`
	RespondedAt *time.Time             `json:"responded_at"`
	CreatedAt   time.Time              `json:"created_at"`
}

type InvitationDTO struct {
	ID        uint                      `json:"id"`
	ProjectID uint                      `json:"project_id"`
	Email     string                    `json:"email"`
	Role      projects.Role             `json:"role"`
	Status    projects.InvitationStatus `json:"status"`
	ExpiresAt time.Time                 `json:"expires_at"`
}

/* ---------- CATALOG ---------- */

type FieldDTO struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Category    string   `json:"category"`
	DataType    string   `json:"data_type"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	Predefined  bool     `json:"predefined"`
	Global      bool     `json:"global"`
	ProjectID   *uint    `json:"project_id"`
}

type TemplateDTO struct {
	ID          uint       `json:"id"`
	ProjectID   uint       `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsDefault   bool       `json:"is_default"`
	Fields      []FieldDTO `json:"fields"`
	CreatedAt   time.Time  `json:"created_at"`
}

/* ---------- ARTICLES ---------- */

type ArticleDTO struct {
	ID            uint               `json:"id"`
	ProjectID     uint               `json:"project_id"`
	CitationKey   string             `json:"citation_key"`
	Title         string             `json:"title"`
	DOI           string             `json:"doi"`
	Status        articles.Status    `json:"status"`
	UploadedByID  uint               `json:"uploaded_by_id"`
	UploadedBy    *UserLiteDTO       `json:"uploaded_by,omitempty"`
	AssigneeID    *uint              `json:"assignee_id"`
	Assignee      *UserLiteDTO       `json:"assignee,omitempty"`
	SourceFile    string             `json:"source_file"`
	OriginalID    *uint              `json:"original_id"`
	ReviewComment string             `json:"review_comment"`
	Progress      *articles.Progress `json:"progress,omitempty"`
	UploadedAt    time.Time          `json:"uploaded_at"`
	AssignedAt    *time.Time         `json:"assigned_at"`
	WorkStartedAt *time.Time         `json:"work_started_at"`
	SubmittedAt   *time.Time         `json:"submitted_at"`
	ApprovedAt    *time.Time         `json:"approved_at"`
	ReviewedAt    *time.Time         `json:"reviewed_at"`
}

type ArticleDetailDTO struct {
	ArticleDTO
	BibTeX      string              `json:"bibtex"`
	Metadata    map[string]any      `json:"metadata"`
	Assignments []AssignmentDTO     `json:"assignments"`
	Comments    []CommentDTO        `json:"comments"`
	History     []ChangeDTO         `json:"history"`
	Role        projects.Role       `json:"role"`
	CanWork     bool                `json:"can_work"`
	Permissions []access.Capability `json:"capabilities"`
}

type AssignmentDTO struct {
	ID          uint       `json:"id"`
	ArticleID   uint       `json:"article_id"`
	FieldID     uint       `json:"field_id"`
	Field       *FieldDTO  `json:"field,omitempty"`
	Value       string     `json:"value"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	Approved    bool       `json:"approved"`
	ApprovedAt  *time.Time `json:"approved_at"`
	Notes       string     `json:"notes"`
}

type CommentDTO struct {
	ID        uint                 `json:"id"`
	Author    *UserLiteDTO         `json:"author,omitempty"`
	Kind      articles.CommentKind `json:"kind"`
	Body      string               `json:"body"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}

type ChangeDTO struct {
	ID        uint                `json:"id"`
	ArticleID uint                `json:"article_id"`
	Title     string              `json:"article_title"`
	ActorID   *uint               `json:"actor_id"`
	Kind      articles.ChangeKind `json:"kind"`
	Field     string              `json:"field"`
	OldValue  string              `json:"old_value"`
	NewValue  string              `json:"new_value"`
	CreatedAt time.Time           `json:"created_at"`
}

type UploadDTO struct {
	ID             uint                   `json:"id"`
	ProjectID      uint                   `json:"project_id"`
	FileName       string                 `json:"file_name"`
	Kind           articles.UploadKind    `json:"kind"`
	ProcessedCount int                    `json:"processed_count"`
	ErrorList      []articles.ImportError `json:"error_list"`
	CreatedAt      time.Time              `json:"created_at"`
}

/* ---------- NOTIFICATIONS ---------- */

type NotificationDTO struct {
	ID        uint      `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	ProjectID *uint     `json:"project_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
