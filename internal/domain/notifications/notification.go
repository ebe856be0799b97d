package notifications

import "time"

type Kind string

const (
	KindJoinRequest         Kind = "JOIN_REQUEST"
	KindJoinApproved        Kind = "JOIN_APPROVED"
	KindJoinRejected        Kind = "JOIN_REJECTED"
	KindInvitation          Kind = "INVITATION"
	KindInvitationAccepted  Kind = "INVITATION_ACCEPTED"
	KindRoleChanged         Kind = "ROLE_CHANGED"
	KindMemberRemoved       Kind = "MEMBER_REMOVED"
	KindMemberLeft          Kind = "MEMBER_LEFT"
	KindFieldsAssigned      Kind = "FIELDS_ASSIGNED"
	KindArticleAssigned     Kind = "ARTICLE_ASSIGNED"
	KindArticleSubmitted    Kind = "ARTICLE_SUBMITTED"
	KindArticleApproved     Kind = "ARTICLE_APPROVED"
	KindCorrectionRequested Kind = "CORRECTION_REQUESTED"
	KindArticleDeleted      Kind = "ARTICLE_DELETED"
	KindArticleAdded        Kind = "ARTICLE_ADDED"
	KindFileUploaded        Kind = "FILE_UPLOADED"
	KindCatalogChanged      Kind = "CATALOG_CHANGED"
	KindGeneral             Kind = "GENERAL"
)

func (k Kind) Valid() bool {
	switch k {
	case KindJoinRequest, KindJoinApproved, KindJoinRejected, KindInvitation, KindInvitationAccepted,
		KindRoleChanged, KindMemberRemoved, KindMemberLeft, KindFieldsAssigned, KindArticleAssigned,
		KindArticleSubmitted, KindArticleApproved, KindCorrectionRequested, KindArticleDeleted,
		KindArticleAdded, KindFileUploaded, KindCatalogChanged, KindGeneral:
		return true
	default:
		return false
	}
}

type Notification struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"not null;index:idx_notifications_user_read"`
	Kind          Kind   `gorm:"type:varchar(32);not null"`
	Title         string `gorm:"type:varchar(200);not null"`
	Message       string `gorm:"type:text"`
	Link          string `gorm:"type:varchar(500)"`
	ProjectID     *uint  `gorm:"index"`
	JoinRequestID *uint
	Read          bool `gorm:"column:is_read;not null;default:false;index:idx_notifications_user_read"`
	CreatedAt     time.Time
}
