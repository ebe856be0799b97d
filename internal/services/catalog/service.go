package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	fields "metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	pub notify.Publisher
	Now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, pub notify.Publisher) *Service {
	return &Service{db: db, log: log.With("service", "catalog"), pub: pub, Now: time.Now}
}

type FieldFilter struct {
	Category fields.Category
	Query    string
}

// ListFields returns the active global fields plus the project's own fields.
func (s *Service) ListFields(ctx context.Context, actorID, projectID uint, f FieldFilter) ([]fields.MetadataField, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, apierr.Validation("unknown field category %q", f.Category)
	}
	q := s.db.WithContext(ctx).
		Where("active = ? AND (project_id IS NULL OR project_id = ?)", true, projectID)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if qs := strings.TrimSpace(f.Query); qs != "" {
		like := "%" + strings.ToLower(qs) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", like, like)
	}
	var out []fields.MetadataField
	err := q.Order("category, name").Find(&out).Error
	return out, err
}

type FieldInput struct {
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	Category    fields.Category `json:"category"`
	DataType    fields.DataType `json:"data_type"`
	Description string          `json:"description"`
	Options     []string        `json:"options"`
}

func (in *FieldInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || len([]rune(in.Name)) > 200 {
		return apierr.Validation("name is required and must be at most 200 characters")
	}
	if !fields.ValidCode(in.Code) {
		return apierr.Validation("code must be 2-50 lowercase letters, digits or underscores, starting with a letter")
	}
	if in.Category == "" {
		in.Category = fields.CategoryOther
	}
	if !in.Category.Valid() {
		return apierr.Validation("unknown field category %q", in.Category)
	}
	if in.DataType == "" {
		in.DataType = fields.TypeText
	}
	if !in.DataType.Valid() {
		return apierr.Validation("unknown data type %q", in.DataType)
	}
	if in.DataType != fields.TypeOptions {
		in.Options = nil
		return nil
	}
	seen := map[string]bool{}
	opts := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		opts = append(opts, o)
	}
	if len(opts) == 0 {
		return apierr.Validation("fields of type OPTIONS need at least one option")
	}
	in.Options = opts
	return nil
}

// CreateField adds a project-specific field. Supervisors are told about it.
func (s *Service) CreateField(ctx context.Context, actorID, projectID uint, in FieldInput) (*fields.MetadataField, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapManageFields); err != nil {
		return nil, err
	}
	f, err := s.createField(ctx, actorID, &projectID, in)
	if err != nil {
		return nil, err
	}
	if sups, err := guard.Supervisors(ctx, s.db, projectID); err == nil {
		s.pub.Publish(notify.Event{
			Kind:       notifications.KindCatalogChanged,
			Recipients: notify.Unique(sups, actorID),
			Title:      "New metadata field",
			Message:    fmt.Sprintf("Field %q (%s) was added to the project catalog.", f.Name, f.Code),
			Link:       fmt.Sprintf("/projects/%d/fields", projectID),
			ProjectID:  &projectID,
		})
	}
	return f, nil
}

// CreateGlobalField adds a custom field visible in every project.
func (s *Service) CreateGlobalField(ctx context.Context, actorID uint, in FieldInput) (*fields.MetadataField, error) {
	if err := s.requireCatalogAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.createField(ctx, actorID, nil, in)
}

func (s *Service) createField(ctx context.Context, actorID uint, projectID *uint, in FieldInput) (*fields.MetadataField, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var taken int64
	if err := s.db.WithContext(ctx).Model(&fields.MetadataField{}).Where("code = ?", in.Code).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, apierr.Conflict("a field with code %q already exists", in.Code)
	}
	f := &fields.MetadataField{
		Name:        in.Name,
		Code:        in.Code,
		Category:    in.Category,
		DataType:    in.DataType,
		Description: in.Description,
		Options:     in.Options,
		ProjectID:   projectID,
		CreatedByID: &actorID,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("a field with code %q already exists", in.Code)
		}
		return nil, err
	}
	s.log.Info("metadata field created", "field_id", f.ID, "code", f.Code, "project_id", projectID)
	return f, nil
}

// DeleteField removes a custom field that no assignment references.
// Project fields belong to the project owner, global custom fields to admins.
func (s *Service) DeleteField(ctx context.Context, actorID, fieldID uint) error {
	var f fields.MetadataField
	err := s.db.WithContext(ctx).First(&f, fieldID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.NotFound("field not found")
	}
	if err != nil {
		return err
	}
	if f.Predefined {
		return apierr.Validation("predefined fields cannot be deleted")
	}
	if f.ProjectID != nil {
		if _, err := guard.MemberWith(ctx, s.db, actorID, *f.ProjectID, access.CapManageFields); err != nil {
			return err
		}
	} else if err := s.requireCatalogAdmin(ctx, actorID); err != nil {
		return err
	}
	var used int64
	if err := s.db.WithContext(ctx).Model(&articles.FieldAssignment{}).Where("field_id = ?", f.ID).Count(&used).Error; err != nil {
		return err
	}
	if used > 0 {
		return apierr.Conflict("field %s is assigned to %d article(s) and cannot be deleted", f.Code, used)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM template_fields WHERE metadata_field_id = ?", f.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&f).Error
	})
}

func (s *Service) requireCatalogAdmin(ctx context.Context, actorID uint) error {
	u, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return err
	}
	if !u.HasPermission(users.PermManageCatalog) {
		return apierr.Forbidden("only administrators can manage the global catalog")
	}
	return nil
}
