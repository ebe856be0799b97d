package review

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttachInput struct {
	ArticleIDs []uint `json:"article_ids"`
	FieldIDs   []uint `json:"field_ids"`
	TemplateID *uint  `json:"template_id"`
}

type AttachResult struct {
	AssignmentsCreated int         `json:"assignments_created"`
	ArticlesUpdated    int         `json:"articles_updated"`
	Reactivated        int         `json:"reactivated"`
	Notified           int         `json:"notified"`
	Errors             []ItemError `json:"errors"`
}

// AttachFields assigns fields (and/or a template's fields) to articles of a
// project. Each article is handled in its own transaction; failures are
// reported per article and do not stop the batch.
func (s *Service) AttachFields(ctx context.Context, actorID, projectID uint, in AttachInput) (*AttachResult, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapAssignFields); err != nil {
		return nil, err
	}
	articleIDs := uniqueIDs(in.ArticleIDs)
	if len(articleIDs) == 0 {
		return nil, apierr.Validation("select at least one article")
	}
	fieldIDs := uniqueIDs(in.FieldIDs)
	if in.TemplateID != nil {
		tpl, err := s.template(ctx, projectID, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		fieldIDs = uniqueIDs(append(fieldIDs, tpl.FieldIDs()...))
	}
	if len(fieldIDs) == 0 {
		return nil, apierr.Validation("select at least one field")
	}
	fields, err := s.visibleFields(ctx, projectID, fieldIDs)
	if err != nil {
		return nil, err
	}

	var found []articles.Article
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND project_id = ?", articleIDs, projectID).
		Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]bool, len(found))
	for _, a := range found {
		byID[a.ID] = true
	}

	res := &AttachResult{Errors: []ItemError{}}
	perUser := map[uint]int{}
	var userOrder []uint
	for _, id := range articleIDs {
		if !byID[id] {
			res.Errors = append(res.Errors, ItemError{ArticleID: id, Error: "article not found in this project"})
			continue
		}
		created, reactivated, responsible, err := s.attachOne(ctx, actorID, id, fields)
		if err != nil {
			s.log.Warn("attach fields failed", "article_id", id, "error", err)
			res.Errors = append(res.Errors, ItemError{ArticleID: id, Error: err.Error()})
			continue
		}
		if created == 0 {
			continue
		}
		res.AssignmentsCreated += created
		res.ArticlesUpdated++
		if reactivated {
			res.Reactivated++
		}
		if responsible != actorID {
			if _, ok := perUser[responsible]; !ok {
				userOrder = append(userOrder, responsible)
			}
			perUser[responsible]++
		}
	}

	for _, uid := range userOrder {
		s.pub.Publish(notify.Event{
			Kind:       notifications.KindFieldsAssigned,
			Recipients: []uint{uid},
			Title:      "New fields to extract",
			Message:    fmt.Sprintf("%d article(s) have new metadata fields assigned to you.", perUser[uid]),
			Link:       fmt.Sprintf("/projects/%d/articles", projectID),
			ProjectID:  &projectID,
		})
	}
	res.Notified = len(userOrder)
	s.log.Info("fields attached", "project_id", projectID, "created", res.AssignmentsCreated, "articles", res.ArticlesUpdated)
	return res, nil
}

func (s *Service) attachOne(ctx context.Context, actorID, articleID uint, fields []catalog.MetadataField) (created int, reactivated bool, responsible uint, err error) {
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		a, err := s.loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		responsible = a.ResponsibleUser()
		now := s.Now()
		var codes []string
		for _, f := range fields {
			fa := articles.FieldAssignment{ArticleID: a.ID, FieldID: f.ID, AssignedByID: &actorID}
			r := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fa)
			if r.Error != nil {
				return fmt.Errorf("create assignment for %s: %w", f.Code, r.Error)
			}
			if r.RowsAffected > 0 {
				created++
				codes = append(codes, f.Code)
			}
		}
		if created == 0 {
			return nil
		}
		entry := articles.NewChange(a, actorID, articles.ChangeAssignment, "fields", "", strings.Join(codes, ","))
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		from := a.Status
		if _, err := s.transition(tx, u, a, actorID, articles.TriggerFieldsAttached, now); err != nil {
			return err
		}
		reactivated = from == articles.StatusApproved
		return nil
	})
	return created, reactivated, responsible, err
}

type TemplateFilter struct {
	Status     articles.Status `json:"status"`
	AssigneeID *uint           `json:"assignee_id"`
}

// ApplyTemplate attaches a template to every project article matching f.
// The status filter defaults to WAITING.
func (s *Service) ApplyTemplate(ctx context.Context, actorID, projectID, templateID uint, f TemplateFilter) (*AttachResult, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapAssignFields); err != nil {
		return nil, err
	}
	if f.Status == "" {
		f.Status = articles.StatusWaiting
	}
	if !f.Status.Valid() {
		return nil, apierr.Validation("unknown article status %q", f.Status)
	}
	q := s.db.WithContext(ctx).Model(&articles.Article{}).
		Where("project_id = ? AND status = ?", projectID, f.Status)
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	var ids []uint
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &AttachResult{Errors: []ItemError{}}, nil
	}
	return s.AttachFields(ctx, actorID, projectID, AttachInput{ArticleIDs: ids, TemplateID: &templateID})
}

type DetachInput struct {
	ArticleIDs []uint `json:"article_ids"`
	FieldIDs   []uint `json:"field_ids"`
}

type DetachResult struct {
	Removed   int         `json:"removed"`
	Protected int         `json:"protected"`
	Reset     int         `json:"reset_to_waiting"`
	Errors    []ItemError `json:"errors"`
}

// DetachFields removes unapproved assignments. Approved assignments are kept
// and counted as protected. An article left without assignments returns to WAITING.
func (s *Service) DetachFields(ctx context.Context, actorID, projectID uint, in DetachInput) (*DetachResult, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapAssignFields); err != nil {
		return nil, err
	}
	articleIDs := uniqueIDs(in.ArticleIDs)
	fieldIDs := uniqueIDs(in.FieldIDs)
	if len(articleIDs) == 0 {
		return nil, apierr.Validation("select at least one article")
	}
	if len(fieldIDs) == 0 {
		return nil, apierr.Validation("select at least one field")
	}
	res := &DetachResult{Errors: []ItemError{}}
	for _, id := range articleIDs {
		// Counts only reach the result once the article's transaction commits.
		var (
			protected, removed int64
			reset              bool
		)
		err := s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
			a, err := s.loadArticle(ctx, tx, id)
			if err != nil {
				return err
			}
			if a.ProjectID != projectID {
				return apierr.NotFound("article not found in this project")
			}
			if err := tx.Model(&articles.FieldAssignment{}).
				Where("article_id = ? AND field_id IN ? AND approved = ?", a.ID, fieldIDs, true).
				Count(&protected).Error; err != nil {
				return err
			}
			del := tx.Where("article_id = ? AND field_id IN ? AND approved = ?", a.ID, fieldIDs, false).
				Delete(&articles.FieldAssignment{})
			if del.Error != nil {
				return del.Error
			}
			if del.RowsAffected == 0 {
				return nil
			}
			removed = del.RowsAffected
			entry := articles.NewChange(a, actorID, articles.ChangeAssignment, "fields",
				fmt.Sprintf("%d removed", del.RowsAffected), "")
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			var remaining int64
			if err := tx.Model(&articles.FieldAssignment{}).Where("article_id = ?", a.ID).Count(&remaining).Error; err != nil {
				return err
			}
			if remaining > 0 {
				return nil
			}
			reset, err = s.transition(tx, u, a, actorID, articles.TriggerAllDetached, s.Now())
			return err
		})
		if err != nil {
			res.Errors = append(res.Errors, ItemError{ArticleID: id, Error: err.Error()})
			continue
		}
		res.Protected += int(protected)
		res.Removed += int(removed)
		if reset {
			res.Reset++
		}
	}
	return res, nil
}

// AssignArticle sets (or clears, with nil) the member responsible for an article.
func (s *Service) AssignArticle(ctx context.Context, actorID, articleID uint, assigneeID *uint) (*articles.Article, error) {
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return nil, err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, a.ProjectID, access.CapAssignArticles); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		if _, err := guard.Membership(ctx, s.db, *assigneeID, a.ProjectID); err != nil {
			return nil, apierr.Validation("assignee must be a member of the project")
		}
	}
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		old := ""
		if a.AssigneeID != nil {
			old = fmt.Sprint(*a.AssigneeID)
		}
		next := ""
		if assigneeID != nil {
			next = fmt.Sprint(*assigneeID)
		}
		if err := tx.Model(a).Update("assignee_id", assigneeID).Error; err != nil {
			return err
		}
		a.AssigneeID = assigneeID
		entry := articles.NewChange(a, actorID, articles.ChangeAssignment, "assignee", old, next)
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if assigneeID != nil && *assigneeID != actorID {
			u.publish(notify.Event{
				Kind:       notifications.KindArticleAssigned,
				Recipients: []uint{*assigneeID},
				Title:      "Article assigned to you",
				Message:    fmt.Sprintf("You are now responsible for %q.", a.Title),
				Link:       articleLink(a),
				ProjectID:  &a.ProjectID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) template(ctx context.Context, projectID, templateID uint) (*catalog.SearchTemplate, error) {
	var t catalog.SearchTemplate
	err := s.db.WithContext(ctx).Preload("Fields").
		Where("id = ? AND project_id = ?", templateID, projectID).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apierr.NotFound("template not found in this project")
		}
		return nil, err
	}
	return &t, nil
}

// visibleFields loads ids and rejects any field outside the project's active catalog.
func (s *Service) visibleFields(ctx context.Context, projectID uint, ids []uint) ([]catalog.MetadataField, error) {
	var fields []catalog.MetadataField
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&fields).Error; err != nil {
		return nil, err
	}
	if len(fields) != len(ids) {
		return nil, apierr.Validation("unknown metadata field in selection")
	}
	for _, f := range fields {
		if !f.VisibleIn(projectID) {
			return nil, apierr.Validation("field %s is not available in this project", f.Code)
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	return fields, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
