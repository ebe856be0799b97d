package identity

import (
	"context"

	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/services/guard"
)

type Me struct {
	User        *users.User
	Memberships []projects.Membership
}

// Me loads the caller with every project membership.
func (s *Service) Me(ctx context.Context, userID uint) (*Me, error) {
	u, err := guard.User(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	var ms []projects.Membership
	if err := s.db.WithContext(ctx).Preload("Project").
		Where("user_id = ?", userID).Order("joined_at DESC").Order("id DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return &Me{User: u, Memberships: ms}, nil
}
