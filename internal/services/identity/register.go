package identity

import (
	"context"
	"fmt"
	"strings"

	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
)

type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	InvitationToken string `json:"invitation_token"`
}

func (r *Registration) validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	if !usernamePattern.MatchString(r.Username) {
		return apierr.Validation("username must be 3-150 letters, digits or . _ -")
	}
	if !isEmailValid(r.Email) {
		return apierr.Validation("invalid email format")
	}
	if !isPasswordStrong(r.Password) {
		return apierr.Validation("password must be at least 8 characters long and contain both letters and numbers")
	}
	return nil
}

// Register creates the user and its guest profile in one transaction.
// A matching pending invitation token counts as a verified address.
func (s *Service) Register(ctx context.Context, in Registration) (*users.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}
	hashed, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	invited := s.hasPendingInvitation(ctx, in.InvitationToken, in.Email)

	u := users.User{
		Username:     in.Username,
		Email:        in.Email,
		Password:     &hashed,
		AuthProvider: "local",
		IsVerified:   invited,
		IsActive:     true,
	}
	var token string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guest, err := s.roleByName(tx, users.RoleGuest)
		if err != nil {
			return err
		}
		profile := users.Profile{FirstName: in.FirstName, LastName: in.LastName, RoleID: &guest.ID}
		profile.Normalize()
		u.Profile = &profile
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		u.Profile.Role = guest
		if invited {
			return nil
		}
		token, err = s.issueToken(tx, u.ID, users.TokenEmailVerification, verificationTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	if token != "" {
		s.sendVerification(&u, token)
	}
	s.log.Info("user registered", "user_id", u.ID, "invited", invited)
	return &u, nil
}

func (s *Service) ensureFree(ctx context.Context, username, email string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&users.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apierr.Conflict("username %s is already taken", username)
	}
	if err := s.db.WithContext(ctx).Model(&users.User{}).Where("LOWER(email) = ?", email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apierr.Conflict("an account with this email already exists")
	}
	return nil
}

func (s *Service) hasPendingInvitation(ctx context.Context, token, email string) bool {
	if token == "" {
		return false
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&projects.Invitation{}).
		Where("token = ? AND LOWER(email) = ? AND status = ? AND expires_at > ?",
			token, email, projects.InvitationPending, s.Now()).
		Count(&n).Error
	return err == nil && n > 0
}

func (s *Service) sendVerification(u *users.User, token string) {
	s.pub.Publish(notify.Event{
		Kind:      notifications.KindGeneral,
		Emails:    []string{u.Email},
		Title:     "Verify your email",
		Message:   fmt.Sprintf("Hello %s, confirm your address to activate your account.", u.FullName()),
		Link:      "/verify-email?token=" + token,
		SendEmail: true,
	})
}

// VerifyEmail marks the token owner verified and burns the token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	vt, err := s.consumeToken(ctx, token, users.TokenEmailVerification)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&users.User{}).Where("id = ?", vt.UserID).Update("is_verified", true).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND type = ?", vt.UserID, users.TokenEmailVerification).
			Delete(&users.VerificationToken{}).Error
	})
}

func (s *Service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.userBy(ctx, "LOWER(email) = ?", normalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsVerified {
		return apierr.InvalidState("user already verified")
	}
	token, err := s.issueToken(s.db.WithContext(ctx), u.ID, users.TokenEmailVerification, verificationTTL)
	if err != nil {
		return err
	}
	s.sendVerification(u, token)
	return nil
}
