package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Service) requireAdmin(ctx context.Context, actorID uint) (*users.User, error) {
	u, err := guard.User(ctx, s.db, actorID)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() && !u.HasPermission(users.PermManageUsers) {
		return nil, apierr.Forbidden("administrator access required")
	}
	return u, nil
}

type Dashboard struct {
	TotalUsers       int64            `json:"total_users"`
	ActiveUsers      int64            `json:"active_users"`
	UnverifiedUsers  int64            `json:"unverified_users"`
	TotalRoles       int64            `json:"total_roles"`
	TotalProjects    int64            `json:"total_projects"`
	ActiveProjects   int64            `json:"active_projects"`
	TotalArticles    int64            `json:"total_articles"`
	ApprovedArticles int64            `json:"approved_articles"`
	PendingReviews   int64            `json:"pending_reviews"`
	UsersPerRole     map[string]int64 `json:"users_per_role"`
}

func (s *Service) Dashboard(ctx context.Context, actorID uint) (*Dashboard, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var d Dashboard
	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&d.TotalUsers, &users.User{}, nil},
		{&d.ActiveUsers, &users.User{}, []any{"is_active = ?", true}},
		{&d.UnverifiedUsers, &users.User{}, []any{"is_verified = ?", false}},
		{&d.TotalRoles, &users.Role{}, nil},
		{&d.TotalProjects, &projects.Project{}, nil},
		{&d.ActiveProjects, &projects.Project{}, []any{"status = ?", projects.StatusActive}},
		{&d.TotalArticles, &articles.Article{}, nil},
		{&d.ApprovedArticles, &articles.Article{}, []any{"status = ?", articles.StatusApproved}},
		{&d.PendingReviews, &articles.Article{}, []any{"status = ?", articles.StatusInReview}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("dashboard count: %w", err)
		}
	}

	var perRole []struct {
		Name  *string
		Count int64
	}
	err := db.Table("users").
		Select("roles.name AS name, COUNT(users.id) AS count").
		Joins("LEFT JOIN profiles ON profiles.user_id = users.id").
		Joins("LEFT JOIN roles ON roles.id = profiles.role_id").
		Group("roles.name").
		Scan(&perRole).Error
	if err != nil {
		return nil, fmt.Errorf("users per role: %w", err)
	}
	d.UsersPerRole = map[string]int64{}
	for _, r := range perRole {
		name := "none"
		if r.Name != nil {
			name = *r.Name
		}
		d.UsersPerRole[name] = r.Count
	}
	return &d, nil
}

type UserFilter struct {
	Query string
	Role  users.RoleName
}

func (s *Service) ListUsers(ctx context.Context, actorID uint, f UserFilter) ([]users.User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&users.User{}).Preload("Profile.Role")
	if f.Role != "" {
		if !f.Role.Valid() {
			return nil, apierr.Validation("unknown role %q", f.Role)
		}
		q = q.Joins("JOIN profiles ON profiles.user_id = users.id").
			Joins("JOIN roles ON roles.id = profiles.role_id").
			Where("roles.name = ?", f.Role)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(users.username) LIKE ? OR LOWER(users.email) LIKE ?", like, like)
	}
	var out []users.User
	if err := q.Order("users.id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type UserDetail struct {
	User        *users.User           `json:"user"`
	Memberships []projects.Membership `json:"memberships"`
}

func (s *Service) GetUser(ctx context.Context, actorID, userID uint) (*UserDetail, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	u, err := guard.User(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	var ms []projects.Membership
	if err := s.db.WithContext(ctx).Preload("Project").
		Where("user_id = ?", userID).Order("joined_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return &UserDetail{User: u, Memberships: ms}, nil
}

// AssignRole moves a user to another platform role. Administrators cannot
// change their own role so the platform always keeps one.
func (s *Service) AssignRole(ctx context.Context, actorID, userID uint, role users.RoleName) (*users.User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apierr.Validation("unknown role %q", role)
	}
	if actorID == userID {
		return nil, apierr.Validation("you cannot change your own role")
	}
	u, err := guard.User(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.roleByName(tx, role)
		if err != nil {
			return err
		}
		if u.Profile == nil {
			u.Profile = &users.Profile{UserID: u.ID, RoleID: &r.ID}
			if err := tx.Create(u.Profile).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&users.Profile{}).Where("id = ?", u.Profile.ID).
			Update("role_id", r.ID).Error; err != nil {
			return err
		}
		u.Profile.RoleID = &r.ID
		u.Profile.Role = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("role assigned", "user_id", userID, "role", role, "by", actorID)
	return u, nil
}

// SetActive enables or disables an account. Disabled accounts cannot log in.
func (s *Service) SetActive(ctx context.Context, actorID, userID uint, active bool) error {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if actorID == userID && !active {
		return apierr.Validation("you cannot disable your own account")
	}
	res := s.db.WithContext(ctx).Model(&users.User{}).Where("id = ?", userID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("user not found")
	}
	return nil
}

type RoleSummary struct {
	users.Role
	Users int64 `json:"users"`
}

func (s *Service) ListRoles(ctx context.Context, actorID uint) ([]RoleSummary, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	var roles []users.Role
	if err := s.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	var counts []struct {
		RoleID uint
		N      int64
	}
	if err := s.db.WithContext(ctx).Model(&users.Profile{}).
		Select("role_id, COUNT(*) AS n").
		Where("role_id IS NOT NULL").
		Group("role_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byRole := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byRole[c.RoleID] = c.N
	}
	out := make([]RoleSummary, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleSummary{Role: r, Users: byRole[r.ID]})
	}
	return out, nil
}

// UpdateRolePermissions replaces a role's permission set.
func (s *Service) UpdateRolePermissions(ctx context.Context, actorID, roleID uint, perms []string) (*users.Role, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if !users.Permission(p).Valid() {
			return nil, apierr.Validation("unknown permission %q", p)
		}
		set[p] = struct{}{}
	}
	clean := make([]string, 0, len(set))
	for p := range set {
		clean = append(clean, p)
	}
	sort.Strings(clean)

	var r users.Role
	if err := s.db.WithContext(ctx).First(&r, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("role not found")
		}
		return nil, err
	}
	r.Permissions = datatypes.JSONSlice[string](clean)
	if err := s.db.WithContext(ctx).Model(&r).Update("permissions", r.Permissions).Error; err != nil {
		return nil, fmt.Errorf("update role permissions: %w", err)
	}
	s.log.Info("role permissions updated", "role", r.Name, "permissions", clean)
	return &r, nil
}
