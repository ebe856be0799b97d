package articles

import (
	"time"

	"metareview/internal/domain/users"

	"gorm.io/datatypes"
)

const MaxTitleLength = 500

type Article struct {
	ID           uint `gorm:"primaryKey"`
	ProjectID    uint `gorm:"not null;uniqueIndex:idx_articles_project_key;index"`
	UploadedByID uint `gorm:"not null;index"`
	UploadedBy   *users.User
	AssigneeID   *uint `gorm:"index"`
	Assignee     *users.User

	CitationKey string `gorm:"type:varchar(200);not null;uniqueIndex:idx_articles_project_key"`
	Title       string `gorm:"type:varchar(500)"`
	DOI         string `gorm:"type:varchar(200)"`
	BibTeX      string `gorm:"type:text"`
	Metadata    datatypes.JSON
	SourceFile  string `gorm:"type:varchar(255)"`
	UploadID    *uint  `gorm:"index"`
	OriginalID  *uint

	Status        Status `gorm:"type:varchar(16);not null;default:'WAITING';index"`
	ReviewComment string `gorm:"type:text"`
	ReviewedByID  *uint

	AssignedAt    *time.Time
	WorkStartedAt *time.Time
	SubmittedAt   *time.Time
	ApprovedAt    *time.Time
	ReviewedAt    *time.Time

	Assignments []FieldAssignment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition moves the article to status to and stamps the matching timestamp.
// Assigned and work-started stamps are written once and never overwritten.
func (a *Article) Transition(to Status, now time.Time) (from Status, changed bool) {
	from = a.Status
	if from == to {
		return from, false
	}
	a.Status = to
	switch to {
	case StatusAssigned:
		if a.AssignedAt == nil {
			a.AssignedAt = &now
		}
	case StatusInProgress:
		if a.WorkStartedAt == nil {
			a.WorkStartedAt = &now
		}
	case StatusInReview:
		a.SubmittedAt = &now
	case StatusApproved:
		a.ApprovedAt = &now
		a.ReviewedAt = &now
	case StatusWaiting:
	}
	return from, true
}

// WorkedBy reports whether userID is the assignee or the uploader.
func (a Article) WorkedBy(userID uint) bool {
	if a.AssigneeID != nil && *a.AssigneeID == userID {
		return true
	}
	return a.UploadedByID == userID
}

// ResponsibleUser is the assignee when set, otherwise the uploader.
func (a Article) ResponsibleUser() uint {
	if a.AssigneeID != nil {
		return *a.AssigneeID
	}
	return a.UploadedByID
}
