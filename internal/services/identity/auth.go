package identity

import (
	"context"
	"fmt"
	"strings"

	"metareview/internal/domain/notifications"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/notify"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Session struct {
	Token string      `json:"token"`
	User  *users.User `json:"-"`
}

// Login accepts either the email address or the username.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apierr.Validation("login and password are required")
	}
	var (
		u   *users.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = s.userBy(ctx, "LOWER(email) = ?", normalizeEmail(login))
	} else {
		u, err = s.userBy(ctx, "username = ?", login)
	}
	if apierr.Is(err, apierr.CodeNotFound) {
		return nil, apierr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if u.Password == nil || *u.Password == "" {
		return nil, apierr.Unauthorized("this account uses Google sign-in")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(password)); err != nil {
		return nil, apierr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return nil, apierr.Forbidden("this account is disabled")
	}
	if !u.IsVerified {
		return nil, apierr.Forbidden("please verify your email before logging in")
	}
	return s.session(u)
}

func (s *Service) session(u *users.User) (*Session, error) {
	token, err := s.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

// RequestPasswordReset never reveals whether the address is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.userBy(ctx, "LOWER(email) = ?", normalizeEmail(email))
	if apierr.Is(err, apierr.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.issueToken(s.db.WithContext(ctx), u.ID, users.TokenPasswordReset, resetTTL)
	if err != nil {
		return err
	}
	s.pub.Publish(notify.Event{
		Kind:      notifications.KindGeneral,
		Emails:    []string{u.Email},
		Title:     "Password reset",
		Message:   "Use the link below within one hour to choose a new password.",
		Link:      "/reset-password?token=" + token,
		SendEmail: true,
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !isPasswordStrong(newPassword) {
		return apierr.Validation("password must be at least 8 characters with letters and numbers")
	}
	vt, err := s.consumeToken(ctx, token, users.TokenPasswordReset)
	if err != nil {
		return err
	}
	hashed, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&users.User{}).Where("id = ?", vt.UserID).Update("password", hashed).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return tx.Delete(vt).Error
	})
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if !isPasswordStrong(newPassword) {
		return apierr.Validation("new password must be at least 8 characters with letters and numbers")
	}
	u, err := s.userBy(ctx, "id = ?", userID)
	if err != nil {
		return err
	}
	if u.Password == nil || *u.Password == "" {
		return apierr.InvalidState("this account does not have a password, sign in with Google")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(oldPassword)); err != nil {
		return apierr.Unauthorized("old password is incorrect")
	}
	hashed, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(u).Omit(clause.Associations).Update("password", hashed).Error
}
