// Package identity owns accounts: registration, credentials, tokens and
// the platform-level role administration.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/notify"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	verificationTTL = 48 * time.Hour
	resetTTL        = time.Hour
)

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	pub    notify.Publisher
	secret []byte
	ttl    time.Duration
	cost   int
	Now    func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, pub notify.Publisher, jwtSecret string, jwtTTL time.Duration) *Service {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &Service{
		db:     db,
		log:    log.With("service", "identity"),
		pub:    pub,
		secret: []byte(jwtSecret),
		ttl:    jwtTTL,
		cost:   bcrypt.DefaultCost,
		Now:    time.Now,
	}
}

// SetHashCost lowers the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetHashCost(cost int) { s.cost = cost }

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,150}$`)
)

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func isEmailValid(email string) bool {
	return emailPattern.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// IssueToken signs the session JWT for u.
func (s *Service) IssueToken(u *users.User) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"email":   u.Email,
		"role":    string(u.RoleName()),
		"exp":     s.Now().Add(s.ttl).Unix(),
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) userBy(ctx context.Context, query string, args ...any) (*users.User, error) {
	var u users.User
	err := s.db.WithContext(ctx).Preload("Profile.Role").Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) roleByName(tx *gorm.DB, name users.RoleName) (*users.Role, error) {
	var r users.Role
	if err := tx.Where("name = ?", name).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("role %s is not seeded", name)
		}
		return nil, err
	}
	return &r, nil
}

// issueToken replaces any earlier token of the same type for the user.
func (s *Service) issueToken(tx *gorm.DB, userID uint, typ users.TokenType, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := tx.Where("user_id = ? AND type = ?", userID, typ).Delete(&users.VerificationToken{}).Error; err != nil {
		return "", err
	}
	vt := users.VerificationToken{
		UserID:    userID,
		Token:     token,
		Type:      typ,
		ExpiresAt: s.Now().Add(ttl),
	}
	if err := tx.Create(&vt).Error; err != nil {
		return "", fmt.Errorf("store %s token: %w", typ, err)
	}
	return token, nil
}

// consumeToken loads a live token of the given type.
func (s *Service) consumeToken(ctx context.Context, token string, typ users.TokenType) (*users.VerificationToken, error) {
	if token == "" {
		return nil, apierr.Validation("token is required")
	}
	var vt users.VerificationToken
	err := s.db.WithContext(ctx).Where("token = ? AND type = ?", token, typ).First(&vt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Validation("invalid or expired token")
	}
	if err != nil {
		return nil, err
	}
	if vt.Expired(s.Now()) {
		_ = s.db.WithContext(ctx).Delete(&vt).Error
		return nil, apierr.Validation("invalid or expired token")
	}
	return &vt, nil
}
