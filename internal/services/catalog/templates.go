package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metareview/internal/domain/access"
	fields "metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
)

type TemplateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FieldIDs    []uint `json:"field_ids"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Service) ListTemplates(ctx context.Context, actorID, projectID uint) ([]fields.SearchTemplate, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	var out []fields.SearchTemplate
	err := s.db.WithContext(ctx).Preload("Fields").
		Where("project_id = ?", projectID).
		Order("is_default DESC, name").
		Find(&out).Error
	return out, err
}

func (s *Service) GetTemplate(ctx context.Context, actorID, templateID uint) (*fields.SearchTemplate, error) {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if _, err := guard.Membership(ctx, s.db, actorID, t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTemplate saves a named field selection. A default template replaces
// the project's previous default.
func (s *Service) CreateTemplate(ctx context.Context, actorID, projectID uint, in TemplateInput) (*fields.SearchTemplate, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapManageTemplates); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len([]rune(in.Name)) > 200 {
		return nil, apierr.Validation("template name is required and must be at most 200 characters")
	}
	ids := unique(in.FieldIDs)
	if len(ids) == 0 {
		return nil, apierr.Validation("a template needs at least one field")
	}
	var fs []fields.MetadataField
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&fs).Error; err != nil {
		return nil, err
	}
	if len(fs) != len(ids) {
		return nil, apierr.Validation("unknown metadata field in selection")
	}
	for _, f := range fs {
		if !f.VisibleIn(projectID) {
			return nil, apierr.Validation("field %s is not available in this project", f.Code)
		}
	}

	t := &fields.SearchTemplate{
		ProjectID:   projectID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		IsDefault:   in.IsDefault,
		CreatedByID: actorID,
		Fields:      fs,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.IsDefault {
			if err := tx.Model(&fields.SearchTemplate{}).
				Where("project_id = ? AND is_default = ?", projectID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Omit("Fields.*").Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, actorID, projectID, "Template created", fmt.Sprintf("Template %q with %d field(s) is available.", t.Name, len(fs)))
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, actorID, templateID uint) error {
	t, err := s.loadTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, t.ProjectID, access.CapManageTemplates); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(t).Association("Fields").Clear(); err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
	if err != nil {
		return err
	}
	s.announce(ctx, actorID, t.ProjectID, "Template deleted", fmt.Sprintf("Template %q was removed.", t.Name))
	return nil
}

func (s *Service) loadTemplate(ctx context.Context, id uint) (*fields.SearchTemplate, error) {
	var t fields.SearchTemplate
	err := s.db.WithContext(ctx).Preload("Fields").First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("template not found")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) announce(ctx context.Context, actorID, projectID uint, title, msg string) {
	members, err := guard.Members(ctx, s.db, projectID)
	if err != nil {
		s.log.Warn("load members for notification", "project_id", projectID, "error", err)
		return
	}
	s.pub.Publish(notify.Event{
		Kind:       notifications.KindCatalogChanged,
		Recipients: notify.Unique(members, actorID),
		Title:      title,
		Message:    msg,
		Link:       fmt.Sprintf("/projects/%d/templates", projectID),
		ProjectID:  &projectID,
	})
}

func unique(ids []uint) []uint {
	seen := map[uint]bool{}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
