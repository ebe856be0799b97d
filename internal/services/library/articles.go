package library

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/notifications"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/bibimport"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
)

type ArticleInput struct {
	Title       string `json:"title"`
	DOI         string `json:"doi"`
	CitationKey string `json:"citation_key"`
	Authors     string `json:"authors"`
	Year        int    `json:"year"`
}

// CreateArticle adds a single article by hand. Only the title is required;
// a citation key is derived from it when none is given.
func (s *Service) CreateArticle(ctx context.Context, actorID, projectID uint, in ArticleInput) (*articles.Article, error) {
	if _, err := guard.MemberWith(ctx, s.db, actorID, projectID, access.CapUpload); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.CitationKey = strings.TrimSpace(in.CitationKey)
	if in.Title == "" {
		return nil, apierr.Validation("title is required")
	}
	if len([]rune(in.Title)) > articles.MaxTitleLength {
		return nil, apierr.Validation("title must be at most %d characters", articles.MaxTitleLength)
	}
	if strings.ContainsAny(in.CitationKey, " \t,{}") {
		return nil, apierr.Validation("citation key may not contain spaces, commas or braces")
	}
	year := in.Year
	if year == 0 {
		year = s.Now().Year()
	}

	var a *articles.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		used, err := existingKeys(tx, projectID)
		if err != nil {
			return err
		}
		key := in.CitationKey
		if key == "" {
			key = uniqueKey(keyFromTitle(in.Title, year), used)
		} else if _, dup := used[key]; dup {
			return apierr.Conflict("citation key %q already exists in this project", key)
		}
		e := bibimport.NewEntry("article", key, map[string]string{
			"title":  in.Title,
			"doi":    strings.TrimSpace(in.DOI),
			"author": strings.TrimSpace(in.Authors),
			"year":   fmt.Sprint(year),
		})
		created, ok, err := s.createArticle(tx, actorID, projectID, e, "", nil)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict("citation key %q already exists in this project", key)
		}
		a = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, projectID)
	if leads, err := guard.Leads(ctx, s.db, projectID); err == nil {
		s.pub.Publish(notify.Event{
			Kind:       notifications.KindArticleAdded,
			Recipients: notify.Unique(leads, actorID),
			Title:      "Article added",
			Message:    fmt.Sprintf("%q was added to the project.", a.Title),
			Link:       fmt.Sprintf("/articles/%d", a.ID),
			ProjectID:  &projectID,
		})
	}
	return a, nil
}

// DeleteArticle removes an article with its assignments and comments. The
// DELETION change row is written first and survives the article.
func (s *Service) DeleteArticle(ctx context.Context, actorID, articleID uint) error {
	a, err := s.loadArticle(ctx, articleID)
	if err != nil {
		return err
	}
	m, err := guard.Membership(ctx, s.db, actorID, a.ProjectID)
	if err != nil {
		return err
	}
	if !access.CanDelete(m, *a) {
		return apierr.Forbidden("only the uploader or a project lead can delete this article")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := articles.NewChange(a, actorID, articles.ChangeDeletion, "article", a.CitationKey, "")
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", a.ID).Delete(&articles.FieldAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", a.ID).Delete(&articles.ReviewComment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&articles.Article{}).Where("original_id = ?", a.ID).Update("original_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&articles.Article{}, a.ID).Error
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, a.ProjectID)
	s.log.Info("article deleted", "article_id", a.ID, "project_id", a.ProjectID, "actor_id", actorID)
	if a.AssigneeID != nil {
		s.pub.Publish(notify.Event{
			Kind:       notifications.KindArticleDeleted,
			Recipients: notify.Unique([]uint{*a.AssigneeID}, actorID),
			Title:      "Article deleted",
			Message:    fmt.Sprintf("%q, assigned to you, was deleted.", a.Title),
			Link:       fmt.Sprintf("/projects/%d/articles", a.ProjectID),
			ProjectID:  &a.ProjectID,
		})
	}
	return nil
}

// keyFromTitle builds keys like "effects2024" from the first significant word.
func keyFromTitle(title string, year int) string {
	word := "article"
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) || r > unicode.MaxASCII
	}) {
		if len(w) > 3 {
			word = w
			break
		}
	}
	return fmt.Sprintf("%s%d", word, year)
}
