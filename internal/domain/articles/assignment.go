package articles

import (
	"strings"
	"time"

	"metareview/internal/domain/catalog"
)

type FieldAssignment struct {
	ID        uint                   `gorm:"primaryKey"`
	ArticleID uint                   `gorm:"not null;uniqueIndex:idx_assignment_article_field"`
	FieldID   uint                   `gorm:"not null;uniqueIndex:idx_assignment_article_field;index"`
	Field     *catalog.MetadataField `gorm:"constraint:OnDelete:RESTRICT"`

	Value       string `gorm:"type:text"`
	Completed   bool   `gorm:"not null;default:false"`
	CompletedAt *time.Time

	Approved     bool `gorm:"not null;default:false"`
	ApprovedByID *uint
	ApprovedAt   *time.Time

	Notes        string `gorm:"type:text"`
	AssignedByID *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetValue stores value and keeps Completed in sync with it.
// Resubmitting the current value is a no-op and leaves CompletedAt untouched.
func (fa *FieldAssignment) SetValue(value string, now time.Time) (changed bool) {
	v := strings.TrimSpace(value)
	if v == fa.Value {
		return false
	}
	fa.Value = v
	if v == "" {
		fa.Completed = false
		fa.CompletedAt = nil
		return true
	}
	fa.Completed = true
	fa.CompletedAt = &now
	return true
}

func (fa *FieldAssignment) Approve(by uint, now time.Time) {
	fa.Approved = true
	fa.ApprovedByID = &by
	fa.ApprovedAt = &now
}

// Reopen revokes approval and records the reason in the notes.
func (fa *FieldAssignment) Reopen(reason string) {
	fa.Approved = false
	fa.ApprovedByID = nil
	fa.ApprovedAt = nil
	fa.Notes = "Correction requested: " + strings.TrimSpace(reason)
}
