package notify

import (
	"context"

	"metareview/internal/domain/notifications"
	"metareview/internal/pkg/apierr"

	"gorm.io/gorm"
)

const defaultInboxLimit = 50

// Inbox reads and acknowledges the in-app notifications written by StoreSink.
type Inbox struct {
	db *gorm.DB
}

func NewInbox(db *gorm.DB) *Inbox { return &Inbox{db: db} }

func (i *Inbox) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultInboxLimit
	}
	q := i.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []notifications.Notification
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (i *Inbox) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := i.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead only touches notifications owned by userID.
func (i *Inbox) MarkRead(ctx context.Context, userID, id uint) error {
	res := i.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("notification not found")
	}
	return nil
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := i.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
