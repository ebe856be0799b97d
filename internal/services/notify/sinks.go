package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metareview/internal/domain/notifications"
	"metareview/internal/domain/users"
	"metareview/internal/infra/mail"

	"gorm.io/gorm"
)

// StoreSink writes one in-app Notification row per recipient.
type StoreSink struct {
	db *gorm.DB
}

func NewStoreSink(db *gorm.DB) *StoreSink { return &StoreSink{db: db} }

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, ev Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	rows := make([]notifications.Notification, 0, len(ev.Recipients))
	for _, uid := range ev.Recipients {
		rows = append(rows, notifications.Notification{
			UserID:        uid,
			Kind:          ev.Kind,
			Title:         truncate(ev.Title, 200),
			Message:       ev.Message,
			Link:          ev.Link,
			ProjectID:     ev.ProjectID,
			JoinRequestID: ev.JoinRequestID,
		})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// EmailSink mails events flagged SendEmail to their recipients.
type EmailSink struct {
	db        *gorm.DB
	mailer    mail.Mailer
	publicURL string
}

func NewEmailSink(db *gorm.DB, mailer mail.Mailer, publicURL string) *EmailSink {
	return &EmailSink{db: db, mailer: mailer, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, ev Event) error {
	if !ev.SendEmail {
		return nil
	}
	addrs := append([]string{}, ev.Emails...)
	if len(ev.Recipients) > 0 {
		var found []string
		err := s.db.WithContext(ctx).Model(&users.User{}).
			Where("id IN ? AND is_active = ?", ev.Recipients, true).
			Pluck("email", &found).Error
		if err != nil {
			return fmt.Errorf("load recipient emails: %w", err)
		}
		addrs = append(addrs, found...)
	}
	body := ev.Message
	if ev.Link != "" {
		body += "\n\n" + s.publicURL + ev.Link
	}
	var errs []error
	for _, to := range addrs {
		if err := s.mailer.Send(ctx, mail.Message{To: to, Subject: ev.Title, Body: body}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
