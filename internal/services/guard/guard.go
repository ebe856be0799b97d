// Package guard resolves the caller's identity and project membership
// and turns missing rights into typed forbidden errors.
package guard

import (
	"context"
	"errors"

	"metareview/internal/domain/access"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"

	"gorm.io/gorm"
)

func Membership(ctx context.Context, db *gorm.DB, userID, projectID uint) (projects.Membership, error) {
	var m projects.Membership
	err := db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, apierr.Forbidden("you are not a member of this project")
	}
	return m, err
}

// Require fails unless m grants c.
func Require(m projects.Membership, c access.Capability) error {
	if access.Can(m, c) {
		return nil
	}
	return apierr.Forbidden("your project role (%s) does not allow %s", m.Role, c)
}

// MemberWith combines Membership and Require.
func MemberWith(ctx context.Context, db *gorm.DB, userID, projectID uint, c access.Capability) (projects.Membership, error) {
	m, err := Membership(ctx, db, userID, projectID)
	if err != nil {
		return m, err
	}
	return m, Require(m, c)
}

func User(ctx context.Context, db *gorm.DB, id uint) (*users.User, error) {
	var u users.User
	err := db.WithContext(ctx).Preload("Profile.Role").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func Project(ctx context.Context, db *gorm.DB, id uint) (*projects.Project, error) {
	var p projects.Project
	err := db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("project not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Leads returns the user ids of a project's owner and supervisors.
func Leads(ctx context.Context, db *gorm.DB, projectID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&projects.Membership{}).
		Where("project_id = ? AND role IN ?", projectID, []projects.Role{projects.RoleOwner, projects.RoleSupervisor}).
		Order("id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Supervisors returns only the supervisors of a project.
func Supervisors(ctx context.Context, db *gorm.DB, projectID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&projects.Membership{}).
		Where("project_id = ? AND role = ?", projectID, projects.RoleSupervisor).
		Order("id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Members returns every member's user id.
func Members(ctx context.Context, db *gorm.DB, projectID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&projects.Membership{}).
		Where("project_id = ?", projectID).
		Order("id").
		Pluck("user_id", &ids).Error
	return ids, err
}
