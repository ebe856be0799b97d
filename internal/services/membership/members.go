package membership

import (
	"context"
	"fmt"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"
)

func (s *Service) ListMembers(ctx context.Context, actorID, projectID uint) ([]projects.Membership, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	var out []projects.Membership
	err := s.db.WithContext(ctx).Preload("User.Profile").
		Where("project_id = ?", projectID).Order("id").Find(&out).Error
	return out, err
}

type RoleChange struct {
	Role      projects.Role `json:"role"`
	CanInvite *bool         `json:"can_invite"`
}

// ChangeRole is owner-only and never applies to the owner's own record.
func (s *Service) ChangeRole(ctx context.Context, actorID, projectID, targetUserID uint, in RoleChange) (*projects.Membership, error) {
	actor, err := guard.Membership(ctx, s.db, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner() {
		return nil, apierr.Forbidden("only the project owner can change member roles")
	}
	if targetUserID == actorID {
		return nil, apierr.Forbidden("the owner's own role cannot be changed")
	}
	target, err := s.member(ctx, projectID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.IsOwner() {
		return nil, apierr.Forbidden("the owner's role cannot be changed")
	}
	if !in.Role.Assignable() {
		return nil, apierr.Validation("role must be SUPERVISOR or COLLABORATOR, got %q", in.Role)
	}
	updates := map[string]any{"role": in.Role}
	if in.CanInvite != nil {
		updates["can_invite"] = *in.CanInvite
	}
	if err := s.db.WithContext(ctx).Model(target).Updates(updates).Error; err != nil {
		return nil, err
	}
	target.Role = in.Role
	if in.CanInvite != nil {
		target.CanInvite = *in.CanInvite
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindRoleChanged,
		Recipients: []uint{targetUserID},
		Title:      "Your project role changed",
		Message:    fmt.Sprintf("You are now %s in this project.", strings.ToLower(string(in.Role))),
		Link:       fmt.Sprintf("/projects/%d", projectID),
		ProjectID:  &projectID,
	})
	return target, nil
}

// RemoveMember is owner-only; the owner record cannot be removed and nobody removes themselves.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, targetUserID uint) error {
	actor, err := guard.Membership(ctx, s.db, actorID, projectID)
	if err != nil {
		return err
	}
	if err := guard.Require(actor, access.CapManageMembers); err != nil {
		return err
	}
	if targetUserID == actorID {
		return apierr.Validation("use leave to exit a project")
	}
	target, err := s.member(ctx, projectID, targetUserID)
	if err != nil {
		return err
	}
	if target.IsOwner() {
		return apierr.Forbidden("the project owner cannot be removed")
	}
	if err := s.db.WithContext(ctx).Delete(target).Error; err != nil {
		return err
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindMemberRemoved,
		Recipients: []uint{targetUserID},
		Title:      "Removed from project",
		Message:    "You were removed from a project you collaborated on.",
		ProjectID:  &projectID,
	})
	return nil
}

// Leave removes the caller's own membership. Owners cannot leave.
func (s *Service) Leave(ctx context.Context, actorID, projectID uint) error {
	m, err := guard.Membership(ctx, s.db, actorID, projectID)
	if err != nil {
		return err
	}
	if m.IsOwner() {
		return apierr.Forbidden("the project owner cannot leave the project")
	}
	if err := s.db.WithContext(ctx).Delete(&m).Error; err != nil {
		return err
	}
	p, err := guard.Project(ctx, s.db, projectID)
	if err != nil {
		return err
	}
	u, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return err
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindMemberLeft,
		Recipients: []uint{p.OwnerID},
		Title:      "A member left " + p.Name,
		Message:    fmt.Sprintf("%s left the project.", u.FullName()),
		Link:       fmt.Sprintf("/projects/%d", projectID),
		ProjectID:  &projectID,
	})
	return nil
}

func (s *Service) member(ctx context.Context, projectID, userID uint) (*projects.Membership, error) {
	var m projects.Membership
	err := s.db.WithContext(ctx).Where("project_id = ? AND user_id = ?", projectID, userID).First(&m).Error
	if isNotFound(err) {
		return nil, apierr.NotFound("user is not a member of this project")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
