package review

import (
	"context"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/stats"

	"gorm.io/gorm"
)

type ArticleFilter struct {
	Status     articles.Status
	AssigneeID *uint
	Query      string
	Page       int
	PageSize   int
}

type ArticleSummary struct {
	Article  articles.Article
	Progress articles.Progress
}

type ArticlePage struct {
	Items        []ArticleSummary
	Total        int64
	Page         int
	PageSize     int
	StatusCounts map[articles.Status]int64
}

func (s *Service) ListArticles(ctx context.Context, actorID, projectID uint, f ArticleFilter) (*ArticlePage, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apierr.Validation("unknown article status %q", f.Status)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
	q := s.db.WithContext(ctx).Model(&articles.Article{}).Where("project_id = ?", projectID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	if qs := strings.TrimSpace(f.Query); qs != "" {
		like := "%" + strings.ToLower(qs) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(citation_key) LIKE ? OR LOWER(doi) LIKE ?)", like, like, like)
	}
	page := &ArticlePage{Page: f.Page, PageSize: f.PageSize}
	if err := q.Session(&gorm.Session{}).Count(&page.Total).Error; err != nil {
		return nil, err
	}
	var list []articles.Article
	if err := q.Preload("Assignments").Preload("Assignee.Profile").
		Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	page.Items = make([]ArticleSummary, 0, len(list))
	for _, a := range list {
		page.Items = append(page.Items, ArticleSummary{Article: a, Progress: articles.ComputeProgress(a.Assignments)})
	}
	counts, err := stats.StatusCounts(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	page.StatusCounts = counts
	return page, nil
}

type ArticleDetail struct {
	Article  articles.Article
	Progress articles.Progress
	Comments []articles.ReviewComment
	History  []articles.ChangeLog
	Policy   access.Policy
	CanWork  bool
}

func (s *Service) GetArticle(ctx context.Context, actorID, articleID uint) (*ArticleDetail, error) {
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return nil, err
	}
	m, err := guard.Membership(ctx, s.db, actorID, a.ProjectID)
	if err != nil {
		return nil, err
	}
	d := &ArticleDetail{Policy: access.ComputePolicy(m)}
	if err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("field_id") }).
		Preload("Assignments.Field").
		Preload("Assignee.Profile").
		Preload("UploadedBy.Profile").
		First(&d.Article, articleID).Error; err != nil {
		return nil, err
	}
	d.Progress = articles.ComputeProgress(d.Article.Assignments)
	d.CanWork = access.CanWorkOn(m, d.Article)
	if err := s.db.WithContext(ctx).Preload("Author.Profile").
		Where("article_id = ?", articleID).Order("created_at DESC").
		Find(&d.Comments).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).Order("created_at DESC, id DESC").Limit(100).
		Find(&d.History).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// History returns an article's change log, including entries of deleted articles.
func (s *Service) History(ctx context.Context, actorID, articleID uint) ([]articles.ChangeLog, error) {
	var logs []articles.ChangeLog
	if err := s.db.WithContext(ctx).Where("article_id = ?", articleID).
		Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, apierr.NotFound("no history for this article")
	}
	if _, err := guard.Membership(ctx, s.db, actorID, logs[0].ProjectID); err != nil {
		return nil, err
	}
	return logs, nil
}

// Tasks lists the open work of a member: articles waiting or assigned that
// the member is responsible for. Leads may look at anyone; others only at themselves.
func (s *Service) Tasks(ctx context.Context, actorID, projectID, userID uint) ([]articles.Article, error) {
	m, err := guard.Membership(ctx, s.db, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if userID != actorID && !m.Leads() {
		return nil, apierr.Forbidden("only project leads can view other members' tasks")
	}
	var out []articles.Article
	err = s.db.WithContext(ctx).Preload("Assignments").
		Where("project_id = ? AND status IN ?", projectID, []articles.Status{articles.StatusWaiting, articles.StatusAssigned}).
		Where("(assignee_id = ? OR (assignee_id IS NULL AND uploaded_by_id = ?))", userID, userID).
		Order("created_at").
		Find(&out).Error
	return out, err
}

// MarkCommentsRead flags the caller's review comments on an article as read.
func (s *Service) MarkCommentsRead(ctx context.Context, actorID, articleID uint) (int64, error) {
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return 0, err
	}
	if _, err := guard.Membership(ctx, s.db, actorID, a.ProjectID); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&articles.ReviewComment{}).
		Where("article_id = ? AND recipient_id = ? AND is_read = ?", articleID, actorID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
