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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestJoin files a pending join request and notifies the project leads.
func (s *Service) RequestJoin(ctx context.Context, actorID, projectID uint, message string) (*projects.JoinRequest, error) {
	p, err := guard.Project(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != projects.StatusActive {
		return nil, apierr.InvalidState("project %q is not accepting members", p.Name)
	}
	requester, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err == nil {
		return nil, apierr.Conflict("you are already a member of this project")
	} else if !apierr.Is(err, apierr.CodeForbidden) {
		return nil, err
	}
	var pending int64
	if err := s.db.WithContext(ctx).Model(&projects.JoinRequest{}).
		Where("user_id = ? AND project_id = ? AND status = ?", actorID, projectID, projects.RequestPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, apierr.Conflict("you already have a pending request for this project")
	}

	req := projects.JoinRequest{
		UserID:    actorID,
		ProjectID: projectID,
		Status:    projects.RequestPending,
		Message:   strings.TrimSpace(message),
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, fmt.Errorf("create join request: %w", err)
	}

	leads, err := guard.Leads(ctx, s.db, projectID)
	if err != nil {
		s.log.Warn("load project leads", "project_id", projectID, "error", err)
	}
	s.pub.Publish(notify.Event{
		Kind:          notifications.KindJoinRequest,
		Recipients:    notify.Unique(leads, actorID),
		Title:         "New request to join " + p.Name,
		Message:       fmt.Sprintf("%s asked to join %s.", requester.FullName(), p.Name),
		Link:          fmt.Sprintf("/projects/%d", projectID),
		ProjectID:     &p.ID,
		JoinRequestID: &req.ID,
	})
	return &req, nil
}

// PendingRequests lists open join requests to owners and supervisors.
func (s *Service) PendingRequests(ctx context.Context, actorID, projectID uint) ([]projects.JoinRequest, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapReviewJoinRequest); err != nil {
		return nil, err
	}
	var out []projects.JoinRequest
	err := s.db.WithContext(ctx).Preload("User.Profile").
		Where("project_id = ? AND status = ?", projectID, projects.RequestPending).
		Order("created_at").Find(&out).Error
	return out, err
}

// RespondJoinRequest approves or rejects a pending request. Approval creates a
// collaborator membership in the same transaction as the status update.
func (s *Service) RespondJoinRequest(ctx context.Context, actorID, requestID uint, approve bool) (*projects.JoinRequest, error) {
	var req projects.JoinRequest
	if err := s.db.WithContext(ctx).Preload("Project").First(&req, requestID).Error; err != nil {
		if isNotFound(err) {
			return nil, apierr.NotFound("join request not found")
		}
		return nil, err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, req.ProjectID, access.CapReviewJoinRequest); err != nil {
		return nil, err
	}
	if req.Status != projects.RequestPending {
		return nil, apierr.InvalidState("join request was already %s", strings.ToLower(string(req.Status)))
	}

	now := s.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := projects.RequestRejected
		if approve {
			next = projects.RequestApproved
			m := projects.Membership{
				UserID:    req.UserID,
				ProjectID: req.ProjectID,
				Role:      projects.RoleCollaborator,
				JoinedAt:  now,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
				return fmt.Errorf("create membership: %w", err)
			}
		}
		res := tx.Model(&projects.JoinRequest{}).
			Where("id = ? AND status = ?", req.ID, projects.RequestPending).
			Updates(map[string]any{"status": next, "responded_by": actorID, "responded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apierr.InvalidState("join request was already answered")
		}
		req.Status = next
		req.RespondedBy = &actorID
		req.RespondedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	projectName := ""
	if req.Project != nil {
		projectName = req.Project.Name
	}
	ev := notify.Event{
		Recipients:    []uint{req.UserID},
		Link:          fmt.Sprintf("/projects/%d", req.ProjectID),
		ProjectID:     &req.ProjectID,
		JoinRequestID: &req.ID,
		SendEmail:     true,
	}
	if approve {
		ev.Kind = notifications.KindJoinApproved
		ev.Title = "Request approved"
		ev.Message = fmt.Sprintf("Your request to join %s was approved.", projectName)
	} else {
		ev.Kind = notifications.KindJoinRejected
		ev.Title = "Request rejected"
		ev.Message = fmt.Sprintf("Your request to join %s was rejected.", projectName)
	}
	s.pub.Publish(ev)
	return &req, nil
}
