package articles

import (
	"time"

	"metareview/internal/domain/users"
)

type CommentKind string

const (
	CommentApproval   CommentKind = "APPROVAL"
	CommentCorrection CommentKind = "CORRECTION"
)

type ReviewComment struct {
	ID          uint `gorm:"primaryKey"`
	ArticleID   uint `gorm:"not null;index"`
	AuthorID    uint `gorm:"not null"`
	Author      *users.User
	RecipientID *uint       `gorm:"index"`
	Kind        CommentKind `gorm:"type:varchar(16);not null"`
	Body        string      `gorm:"type:text"`
	Read        bool        `gorm:"column:is_read;not null;default:false"`
	CreatedAt   time.Time
}
