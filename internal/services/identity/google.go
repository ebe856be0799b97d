package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Sub        string
	Email      string
	Name       string
	GivenName  string
	FamilyName string
}

// SignInWithGoogle finds the account by subject, then by email (linking
// the subject), and otherwise creates a verified guest account.
func (s *Service) SignInWithGoogle(ctx context.Context, gi GoogleIdentity) (*Session, error) {
	if gi.Sub == "" || gi.Email == "" {
		return nil, apierr.Unauthorized("token missing required claims")
	}
	gi.Email = normalizeEmail(gi.Email)

	u, err := s.userBy(ctx, "google_sub = ?", gi.Sub)
	if err == nil {
		return s.activeSession(u)
	}
	if !apierr.Is(err, apierr.CodeNotFound) {
		return nil, err
	}

	u, err = s.userBy(ctx, "LOWER(email) = ?", gi.Email)
	switch {
	case err == nil:
		if u.GoogleSub == nil {
			sub := gi.Sub
			err := s.db.WithContext(ctx).Model(u).Omit(clause.Associations).Updates(map[string]any{
				"google_sub":  sub,
				"is_verified": true,
			}).Error
			if err != nil {
				return nil, fmt.Errorf("link google account: %w", err)
			}
			u.GoogleSub = &sub
			u.IsVerified = true
		}
		return s.activeSession(u)
	case !apierr.Is(err, apierr.CodeNotFound):
		return nil, err
	}

	u, err = s.createGoogleUser(ctx, gi)
	if err != nil {
		return nil, err
	}
	s.log.Info("google account created", "user_id", u.ID)
	return s.session(u)
}

func (s *Service) activeSession(u *users.User) (*Session, error) {
	if !u.IsActive {
		return nil, apierr.Forbidden("this account is disabled")
	}
	return s.session(u)
}

func (s *Service) createGoogleUser(ctx context.Context, gi GoogleIdentity) (*users.User, error) {
	sub := gi.Sub
	u := users.User{
		Email:        gi.Email,
		AuthProvider: "google",
		GoogleSub:    &sub,
		IsVerified:   true,
		IsActive:     true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name, err := freeUsername(tx, gi.Email)
		if err != nil {
			return err
		}
		u.Username = name
		guest, err := s.roleByName(tx, users.RoleGuest)
		if err != nil {
			return err
		}
		profile := users.Profile{
			FirstName: firstNonEmpty(gi.GivenName, gi.Name),
			LastName:  gi.FamilyName,
			RoleID:    &guest.ID,
		}
		profile.Normalize()
		u.Profile = &profile
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("create google user: %w", err)
		}
		u.Profile.Role = guest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var usernameStrip = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// freeUsername derives a username from the email's local part.
func freeUsername(tx *gorm.DB, email string) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	base = usernameStrip.ReplaceAllString(base, "")
	for len(base) < 3 {
		base += "_"
	}
	if len(base) > 140 {
		base = base[:140]
	}
	name := base
	for i := 1; ; i++ {
		var n int64
		if err := tx.Model(&users.User{}).Where("username = ?", name).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return name, nil
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
