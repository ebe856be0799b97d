package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"
	"metareview/internal/services/stats"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db            *gorm.DB
	log           *logger.Logger
	pub           notify.Publisher
	invitationTTL time.Duration
	Now           func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, pub notify.Publisher, invitationTTL time.Duration) *Service {
	if invitationTTL <= 0 {
		invitationTTL = 7 * 24 * time.Hour
	}
	return &Service{
		db:            db,
		log:           log.With("service", "membership"),
		pub:           pub,
		invitationTTL: invitationTTL,
		Now:           time.Now,
	}
}

type ProjectInput struct {
	Name        string            `json:"name"`
	Category    projects.Category `json:"category"`
	Description string            `json:"description"`
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apierr.Validation("project name is required")
	}
	if utf8.RuneCountInString(name) > projects.MaxNameLength {
		return "", apierr.Validation("project name must be at most %d characters", projects.MaxNameLength)
	}
	return name, nil
}

// CreateProject creates a project and its owner membership atomically.
func (s *Service) CreateProject(ctx context.Context, actorID uint, in ProjectInput) (*projects.Project, error) {
	u, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if !u.CanCreateProjects() {
		return nil, apierr.Forbidden("only administrators and researchers can create projects")
	}
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.Category == "" {
		in.Category = projects.CategoryHealth
	}
	if !in.Category.Valid() {
		return nil, apierr.Validation("unknown project category %q", in.Category)
	}

	p := projects.Project{
		Name:        name,
		Category:    in.Category,
		Status:      projects.StatusActive,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     actorID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		owner := projects.Membership{
			UserID:    actorID,
			ProjectID: p.ID,
			Role:      projects.RoleOwner,
			CanInvite: true,
			JoinedAt:  s.Now(),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project created", "project_id", p.ID, "owner_id", actorID)
	return &p, nil
}

type ProjectUpdate struct {
	Name        *string            `json:"name"`
	Category    *projects.Category `json:"category"`
	Status      *projects.Status   `json:"status"`
	Description *string            `json:"description"`
}

// UpdateProject is allowed to the owner and to administrators.
func (s *Service) UpdateProject(ctx context.Context, actorID, projectID uint, in ProjectUpdate) (*projects.Project, error) {
	p, err := guard.Project(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerOrAdmin(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return nil, apierr.Validation("unknown project category %q", *in.Category)
		}
		updates["category"] = *in.Category
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apierr.Validation("unknown project status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(p).Omit(clause.Associations).Updates(updates).Error; err != nil {
		return nil, err
	}
	return guard.Project(ctx, s.db, projectID)
}

func (s *Service) requireOwnerOrAdmin(ctx context.Context, actorID, projectID uint) error {
	m, err := guard.Membership(ctx, s.db, actorID, projectID)
	if err == nil && m.IsOwner() {
		return nil
	}
	if err != nil && !apierr.Is(err, apierr.CodeForbidden) {
		return err
	}
	u, uerr := guard.User(ctx, s.db, actorID)
	if uerr != nil {
		return uerr
	}
	if u.IsAdmin() {
		return nil
	}
	return apierr.Forbidden("only the project owner can edit the project")
}

type ProjectDetail struct {
	Project         projects.Project
	Members         []projects.Membership
	PendingRequests []projects.JoinRequest
	StatusCounts    map[articles.Status]int64
	Policy          *access.Policy
}

// GetProject returns a project for its members, or for administrators.
func (s *Service) GetProject(ctx context.Context, actorID, projectID uint) (*ProjectDetail, error) {
	p, err := guard.Project(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	d := &ProjectDetail{Project: *p}

	m, err := guard.Membership(ctx, s.db, actorID, projectID)
	switch {
	case err == nil:
		pol := access.ComputePolicy(m)
		d.Policy = &pol
	case apierr.Is(err, apierr.CodeForbidden):
		u, uerr := guard.User(ctx, s.db, actorID)
		if uerr != nil {
			return nil, uerr
		}
		if !u.HasPermission(users.PermViewAllProject) {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.db.WithContext(ctx).Preload("User.Profile").
		Where("project_id = ?", projectID).Order("id").Find(&d.Members).Error; err != nil {
		return nil, err
	}
	if d.Policy != nil && access.Can(m, access.CapReviewJoinRequest) {
		if err := s.db.WithContext(ctx).Preload("User.Profile").
			Where("project_id = ? AND status = ?", projectID, projects.RequestPending).
			Order("created_at").Find(&d.PendingRequests).Error; err != nil {
			return nil, err
		}
	}
	if d.StatusCounts, err = stats.StatusCounts(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	return d, nil
}

type ProjectFilter struct {
	Role     projects.Role
	Status   projects.Status
	Category projects.Category
	Query    string
}

type MyProject struct {
	Project     projects.Project
	Role        projects.Role
	MemberCount int64
}

// ListMine returns the caller's projects, newest first.
func (s *Service) ListMine(ctx context.Context, actorID uint, f ProjectFilter) ([]MyProject, error) {
	q := s.db.WithContext(ctx).Model(&projects.Membership{}).
		Preload("Project").
		Joins("JOIN projects ON projects.id = memberships.project_id").
		Where("memberships.user_id = ?", actorID)
	if f.Role != "" {
		q = q.Where("memberships.role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("projects.status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("projects.category = ?", f.Category)
	}
	if qs := strings.TrimSpace(f.Query); qs != "" {
		like := "%" + strings.ToLower(qs) + "%"
		q = q.Where("(LOWER(projects.name) LIKE ? OR LOWER(projects.description) LIKE ?)", like, like)
	}
	var ms []projects.Membership
	if err := q.Order("projects.created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	counts, err := s.memberCounts(ctx, projectIDs(ms))
	if err != nil {
		return nil, err
	}
	out := make([]MyProject, 0, len(ms))
	for _, m := range ms {
		if m.Project == nil {
			continue
		}
		out = append(out, MyProject{Project: *m.Project, Role: m.Role, MemberCount: counts[m.ProjectID]})
	}
	return out, nil
}

type SearchResult struct {
	Project        projects.Project
	MemberCount    int64
	IsMember       bool
	PendingRequest bool
}

// Search lists active projects matching query and category.
func (s *Service) Search(ctx context.Context, actorID uint, query string, category projects.Category) ([]SearchResult, error) {
	q := s.db.WithContext(ctx).Preload("Owner.Profile").Where("status = ?", projects.StatusActive)
	if qs := strings.TrimSpace(query); qs != "" {
		like := "%" + strings.ToLower(qs) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var ps []projects.Project
	if err := q.Order("created_at DESC").Limit(100).Find(&ps).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	counts, err := s.memberCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	var mine, pending []uint
	if err := s.db.WithContext(ctx).Model(&projects.Membership{}).
		Where("user_id = ? AND project_id IN ?", actorID, ids).Pluck("project_id", &mine).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&projects.JoinRequest{}).
		Where("user_id = ? AND status = ? AND project_id IN ?", actorID, projects.RequestPending, ids).
		Pluck("project_id", &pending).Error; err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(ps))
	for _, p := range ps {
		out = append(out, SearchResult{
			Project:        p,
			MemberCount:    counts[p.ID],
			IsMember:       contains(mine, p.ID),
			PendingRequest: contains(pending, p.ID),
		})
	}
	return out, nil
}

func (s *Service) memberCounts(ctx context.Context, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	type row struct {
		ProjectID uint
		N         int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&projects.Membership{}).
		Select("project_id, count(*) as n").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ProjectID] = r.N
	}
	return out, nil
}

func projectIDs(ms []projects.Membership) []uint {
	ids := make([]uint, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ProjectID)
	}
	return ids
}

func contains(ids []uint, id uint) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
