package membership

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InviteInput struct {
	Identifier string        `json:"identifier"`
	Role       projects.Role `json:"role"`
}

// InviteResult holds either the membership created for an existing user
// or the invitation issued to an unknown email address.
type InviteResult struct {
	Membership *projects.Membership
	Invitation *projects.Invitation
}

func (s *Service) Invite(ctx context.Context, actorID, projectID uint, in InviteInput) (*InviteResult, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapInvite); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = projects.RoleCollaborator
	}
	if !in.Role.Assignable() {
		return nil, apierr.Validation("invitations can grant SUPERVISOR or COLLABORATOR, not %q", in.Role)
	}
	ident := strings.TrimSpace(in.Identifier)
	if ident == "" {
		return nil, apierr.Validation("username or email is required")
	}
	p, err := guard.Project(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	inviter, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}

	var target users.User
	err = s.db.WithContext(ctx).
		Where("username = ? OR LOWER(email) = ?", ident, strings.ToLower(ident)).
		First(&target).Error
	switch {
	case err == nil:
		return s.addExisting(ctx, p, inviter, &target, in.Role)
	case !isNotFound(err):
		return nil, err
	}

	addr, perr := mail.ParseAddress(ident)
	if perr != nil || !strings.Contains(ident, "@") {
		return nil, apierr.NotFound("no user named %q", ident)
	}
	return s.inviteEmail(ctx, p, inviter, strings.ToLower(addr.Address), in.Role)
}

func (s *Service) addExisting(ctx context.Context, p *projects.Project, inviter, target *users.User, role projects.Role) (*InviteResult, error) {
	m := projects.Membership{
		UserID:    target.ID,
		ProjectID: p.ID,
		Role:      role,
		JoinedAt:  s.Now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return nil, fmt.Errorf("create membership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apierr.Conflict("%s is already a member of this project", target.Username)
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindInvitation,
		Recipients: []uint{target.ID},
		Title:      "Added to " + p.Name,
		Message:    fmt.Sprintf("%s added you to %s as %s.", inviter.FullName(), p.Name, strings.ToLower(string(role))),
		Link:       fmt.Sprintf("/projects/%d", p.ID),
		ProjectID:  &p.ID,
		SendEmail:  true,
	})
	return &InviteResult{Membership: &m}, nil
}

func (s *Service) inviteEmail(ctx context.Context, p *projects.Project, inviter *users.User, email string, role projects.Role) (*InviteResult, error) {
	var pending int64
	if err := s.db.WithContext(ctx).Model(&projects.Invitation{}).
		Where("project_id = ? AND email = ? AND status = ? AND expires_at > ?", p.ID, email, projects.InvitationPending, s.Now()).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, apierr.Conflict("an invitation for %s is already pending", email)
	}
	inv := projects.Invitation{
		ProjectID:   p.ID,
		InvitedByID: inviter.ID,
		Email:       email,
		Token:       uuid.NewString(),
		Role:        role,
		Status:      projects.InvitationPending,
		ExpiresAt:   s.Now().Add(s.invitationTTL),
	}
	if err := s.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	s.pub.Publish(notify.Event{
		Kind:   notifications.KindInvitation,
		Emails: []string{email},
		Title:  "Invitation to " + p.Name,
		Message: fmt.Sprintf("%s invited you to join the meta-analysis project %s. "+
			"Register with this address and accept the invitation before %s.",
			inviter.FullName(), p.Name, inv.ExpiresAt.Format("2006-01-02")),
		Link:      "/invitations/" + inv.Token,
		ProjectID: &p.ID,
		SendEmail: true,
	})
	s.log.Info("invitation issued", "project_id", p.ID, "email", email)
	return &InviteResult{Invitation: &inv}, nil
}

// AcceptInvitation redeems a single-use token for the caller.
func (s *Service) AcceptInvitation(ctx context.Context, actorID uint, token string) (*projects.Membership, error) {
	var inv projects.Invitation
	if err := s.db.WithContext(ctx).Preload("Project").Where("token = ?", token).First(&inv).Error; err != nil {
		if isNotFound(err) {
			return nil, apierr.NotFound("invitation not found")
		}
		return nil, err
	}
	switch inv.Status {
	case projects.InvitationAccepted:
		return nil, apierr.InvalidState("invitation was already used")
	case projects.InvitationExpired:
		return nil, apierr.InvalidState("invitation has expired")
	case projects.InvitationPending:
	}
	now := s.Now()
	if inv.Expired(now) {
		if err := s.db.WithContext(ctx).Model(&inv).Update("status", projects.InvitationExpired).Error; err != nil {
			return nil, err
		}
		return nil, apierr.InvalidState("invitation has expired")
	}
	u, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(u.Email, inv.Email) {
		return nil, apierr.Forbidden("this invitation was issued to a different email address")
	}

	m := projects.Membership{
		UserID:    actorID,
		ProjectID: inv.ProjectID,
		Role:      inv.Role,
		JoinedAt:  now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
			return err
		}
		res := tx.Model(&projects.Invitation{}).
			Where("id = ? AND status = ?", inv.ID, projects.InvitationPending).
			Updates(map[string]any{"status": projects.InvitationAccepted, "accepted_by_id": actorID, "accepted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apierr.InvalidState("invitation was already used")
		}
		return tx.Where("user_id = ? AND project_id = ?", actorID, inv.ProjectID).First(&m).Error
	})
	if err != nil {
		return nil, err
	}

	projectName := ""
	if inv.Project != nil {
		projectName = inv.Project.Name
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindInvitationAccepted,
		Recipients: notify.Unique([]uint{inv.InvitedByID}, actorID),
		Title:      "Invitation accepted",
		Message:    fmt.Sprintf("%s accepted your invitation to %s.", u.FullName(), projectName),
		Link:       fmt.Sprintf("/projects/%d", inv.ProjectID),
		ProjectID:  &inv.ProjectID,
	})
	return &m, nil
}

// HasPendingInvitation reports whether token is a live invitation for email.
func (s *Service) HasPendingInvitation(ctx context.Context, token, email string) bool {
	if token == "" {
		return false
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&projects.Invitation{}).
		Where("token = ? AND LOWER(email) = ? AND status = ? AND expires_at > ?",
			token, strings.ToLower(email), projects.InvitationPending, s.Now()).
		Count(&n).Error
	return err == nil && n > 0
}
