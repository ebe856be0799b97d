package review

import (
	"context"
	"fmt"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/domain/notifications"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/notify"

	"gorm.io/gorm"
)

// SubmitForReview moves an ASSIGNED or IN_PROGRESS article to IN_REVIEW.
func (s *Service) SubmitForReview(ctx context.Context, actorID, articleID uint) (articles.Status, error) {
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return "", err
	}
	m, err := guard.Membership(ctx, s.db, actorID, a.ProjectID)
	if err != nil {
		return "", err
	}
	if !access.CanWorkOn(m, *a) {
		return "", apierr.Forbidden("only the assignee, the uploader or a project lead can submit this article")
	}
	leads, err := guard.Leads(ctx, s.db, a.ProjectID)
	if err != nil {
		return "", err
	}
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		art, err := s.loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if _, err := s.transition(tx, u, art, actorID, articles.TriggerSubmit, s.Now()); err != nil {
			return err
		}
		a = art
		u.publish(notify.Event{
			Kind:       notifications.KindArticleSubmitted,
			Recipients: notify.Unique(leads, actorID),
			Title:      "Article ready for review",
			Message:    fmt.Sprintf("%q was submitted for review.", art.Title),
			Link:       articleLink(art),
			ProjectID:  &art.ProjectID,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return a.Status, nil
}

type BulkResult struct {
	Submitted int         `json:"submitted"`
	Errors    []ItemError `json:"errors"`
}

// SubmitMany submits several articles, continuing past individual failures.
func (s *Service) SubmitMany(ctx context.Context, actorID, projectID uint, articleIDs []uint) (*BulkResult, error) {
	if _, err := guard.Membership(ctx, s.db, actorID, projectID); err != nil {
		return nil, err
	}
	ids := uniqueIDs(articleIDs)
	if len(ids) == 0 {
		return nil, apierr.Validation("select at least one article")
	}
	res := &BulkResult{Errors: []ItemError{}}
	for _, id := range ids {
		a, err := s.loadArticle(ctx, s.db, id)
		if err == nil && a.ProjectID != projectID {
			err = apierr.NotFound("article not found in this project")
		}
		if err == nil {
			_, err = s.SubmitForReview(ctx, actorID, id)
		}
		if err != nil {
			res.Errors = append(res.Errors, ItemError{ArticleID: id, Error: err.Error()})
			continue
		}
		res.Submitted++
	}
	return res, nil
}

// ApproveArticle approves an article in review together with every completed
// field that is still unapproved. It returns the number of fields approved.
func (s *Service) ApproveArticle(ctx context.Context, actorID, articleID uint, comment string) (int, error) {
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return 0, err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, a.ProjectID, access.CapReview); err != nil {
		return 0, err
	}
	comment = strings.TrimSpace(comment)
	approved := 0
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		art, err := s.loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		if _, err := articles.Next(art.Status, articles.TriggerApprove); err != nil {
			return invalidState(err)
		}
		now := s.Now()
		res := tx.Model(&articles.FieldAssignment{}).
			Where("article_id = ? AND completed = ? AND approved = ?", art.ID, true, false).
			Updates(map[string]any{"approved": true, "approved_by_id": actorID, "approved_at": now})
		if res.Error != nil {
			return res.Error
		}
		approved = int(res.RowsAffected)

		if _, err := s.transition(tx, u, art, actorID, articles.TriggerApprove, now); err != nil {
			return err
		}
		if err := tx.Model(art).Updates(map[string]any{"review_comment": comment, "reviewed_by_id": actorID}).Error; err != nil {
			return err
		}
		entry := articles.NewChange(art, actorID, articles.ChangeApproval, "article", "", fmt.Sprintf("%d fields approved", approved))
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		recipient := art.ResponsibleUser()
		if comment != "" {
			rc := articles.ReviewComment{
				ArticleID:   art.ID,
				AuthorID:    actorID,
				RecipientID: &recipient,
				Kind:        articles.CommentApproval,
				Body:        comment,
			}
			if err := tx.Create(&rc).Error; err != nil {
				return err
			}
		}
		u.publish(notify.Event{
			Kind:       notifications.KindArticleApproved,
			Recipients: notify.Unique([]uint{recipient}, actorID),
			Title:      "Article approved",
			Message:    fmt.Sprintf("%q was approved.", art.Title),
			Link:       articleLink(art),
			ProjectID:  &art.ProjectID,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return approved, nil
}

// ApproveField approves one completed field. When it was the last completed
// field awaiting approval and the article is in review, the article becomes APPROVED.
func (s *Service) ApproveField(ctx context.Context, actorID, assignmentID uint) (bool, error) {
	fa, a, err := s.loadAssignment(ctx, s.db, assignmentID)
	if err != nil {
		return false, err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, a.ProjectID, access.CapReview); err != nil {
		return false, err
	}
	if !fa.Completed {
		return false, apierr.InvalidState("field %s has no value to approve", fieldCode(fa))
	}
	fully := false
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		cur, art, err := s.loadAssignment(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !cur.Completed {
			return apierr.InvalidState("field %s has no value to approve", fieldCode(cur))
		}
		now := s.Now()
		if !cur.Approved {
			cur.Approve(actorID, now)
			if err := tx.Model(cur).Select("approved", "approved_by_id", "approved_at").Updates(cur).Error; err != nil {
				return err
			}
			entry := articles.NewChange(art, actorID, articles.ChangeApproval, fieldCode(cur), "", cur.Value)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		var all []articles.FieldAssignment
		if err := tx.Where("article_id = ?", art.ID).Find(&all).Error; err != nil {
			return err
		}
		if articles.ComputeProgress(all).CanApprove {
			changed, err := s.transition(tx, u, art, actorID, articles.TriggerLastFieldApproved, now)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Model(art).Update("reviewed_by_id", actorID).Error; err != nil {
					return err
				}
				u.publish(notify.Event{
					Kind:       notifications.KindArticleApproved,
					Recipients: notify.Unique([]uint{art.ResponsibleUser()}, actorID),
					Title:      "Article approved",
					Message:    fmt.Sprintf("Every field of %q is approved.", art.Title),
					Link:       articleLink(art),
					ProjectID:  &art.ProjectID,
				})
			}
		}
		fully = art.Status == articles.StatusApproved
		return nil
	})
	return fully, err
}

// RequestFieldCorrection revokes a field's approval with a mandatory reason.
// An approved article goes back to IN_REVIEW; other statuses are untouched.
func (s *Service) RequestFieldCorrection(ctx context.Context, actorID, assignmentID uint, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return apierr.Validation("a comment explaining the correction is required")
	}
	_, a, err := s.loadAssignment(ctx, s.db, assignmentID)
	if err != nil {
		return err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, a.ProjectID, access.CapReview); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		cur, art, err := s.loadAssignment(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		cur.Reopen(comment)
		if err := tx.Model(cur).Select("approved", "approved_by_id", "approved_at", "notes").Updates(cur).Error; err != nil {
			return err
		}
		entry := articles.NewChange(art, actorID, articles.ChangeCorrectionRequest, fieldCode(cur), cur.Value, comment)
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if _, err := s.transition(tx, u, art, actorID, articles.TriggerFieldReopened, s.Now()); err != nil {
			return err
		}
		recipient := art.ResponsibleUser()
		rc := articles.ReviewComment{
			ArticleID:   art.ID,
			AuthorID:    actorID,
			RecipientID: &recipient,
			Kind:        articles.CommentCorrection,
			Body:        fmt.Sprintf("[%s] %s", fieldCode(cur), comment),
		}
		if err := tx.Create(&rc).Error; err != nil {
			return err
		}
		u.publish(notify.Event{
			Kind:       notifications.KindCorrectionRequested,
			Recipients: notify.Unique([]uint{recipient}, actorID),
			Title:      "Field correction requested",
			Message:    fmt.Sprintf("Field %s of %q needs a correction: %s", fieldCode(cur), art.Title, comment),
			Link:       articleLink(art),
			ProjectID:  &art.ProjectID,
			SendEmail:  true,
		})
		return nil
	})
}

// RequestArticleCorrection sends an article in review back to ASSIGNED.
func (s *Service) RequestArticleCorrection(ctx context.Context, actorID, articleID uint, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return apierr.Validation("a comment explaining the correction is required")
	}
	a, err := s.loadArticle(ctx, s.db, articleID)
	if err != nil {
		return err
	}
	if _, err := guard.MemberWith(ctx, s.db, actorID, a.ProjectID, access.CapReview); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		art, err := s.loadArticle(ctx, tx, articleID)
		if err != nil {
			return err
		}
		now := s.Now()
		if _, err := s.transition(tx, u, art, actorID, articles.TriggerRequestCorrection, now); err != nil {
			return err
		}
		if err := tx.Model(art).Updates(map[string]any{
			"review_comment": comment,
			"reviewed_by_id": actorID,
			"reviewed_at":    now,
		}).Error; err != nil {
			return err
		}
		recipient := art.ResponsibleUser()
		rc := articles.ReviewComment{
			ArticleID:   art.ID,
			AuthorID:    actorID,
			RecipientID: &recipient,
			Kind:        articles.CommentCorrection,
			Body:        comment,
		}
		if err := tx.Create(&rc).Error; err != nil {
			return err
		}
		entry := articles.NewChange(art, actorID, articles.ChangeCorrectionRequest, "article", "", comment)
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		u.publish(notify.Event{
			Kind:       notifications.KindCorrectionRequested,
			Recipients: notify.Unique([]uint{recipient}, actorID),
			Title:      "Correction requested",
			Message:    fmt.Sprintf("%q needs corrections: %s", art.Title, comment),
			Link:       articleLink(art),
			ProjectID:  &art.ProjectID,
			SendEmail:  true,
		})
		return nil
	})
}
