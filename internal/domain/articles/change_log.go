package articles

import "time"

type ChangeKind string

const (
	ChangeCreated           ChangeKind = "CREATED"
	ChangeMetadataEdit      ChangeKind = "METADATA_EDIT"
	ChangeStatus            ChangeKind = "STATUS_CHANGE"
	ChangeAssignment        ChangeKind = "ASSIGNMENT"
	ChangeApproval          ChangeKind = "APPROVAL"
	ChangeCorrectionRequest ChangeKind = "CORRECTION_REQUEST"
	ChangeReactivated       ChangeKind = "REACTIVATED"
	ChangeDeletion          ChangeKind = "DELETION"
	ChangeDownload          ChangeKind = "DOWNLOAD"
)

// ChangeLog is append-only. ArticleID is not a foreign key so deletion
// records outlive the article they describe.
type ChangeLog struct {
	ID           uint       `gorm:"primaryKey"`
	ArticleID    uint       `gorm:"not null;index"`
	ProjectID    uint       `gorm:"not null;index"`
	ArticleTitle string     `gorm:"type:varchar(500)"`
	ActorID      *uint      `gorm:"index"`
	Kind         ChangeKind `gorm:"type:varchar(32);not null;index"`
	Field        string     `gorm:"type:varchar(100)"`
	OldValue     string     `gorm:"type:text"`
	NewValue     string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"index"`
}

func NewChange(a *Article, actor uint, kind ChangeKind, field, oldValue, newValue string) ChangeLog {
	var actorID *uint
	if actor != 0 {
		actorID = &actor
	}
	return ChangeLog{
		ArticleID:    a.ID,
		ProjectID:    a.ProjectID,
		ArticleTitle: a.Title,
		ActorID:      actorID,
		Kind:         kind,
		Field:        field,
		OldValue:     oldValue,
		NewValue:     newValue,
	}
}

func StatusChange(a *Article, actor uint, from, to Status) ChangeLog {
	return NewChange(a, actor, ChangeStatus, "status", string(from), string(to))
}
