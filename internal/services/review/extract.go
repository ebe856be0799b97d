package review

import (
	"context"
	"strings"

	"metareview/internal/domain/access"
	"metareview/internal/domain/articles"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"

	"gorm.io/gorm"
)

type ValueInput struct {
	Value string  `json:"value"`
	Notes *string `json:"notes"`
}

type ValueResult struct {
	Assignment    articles.FieldAssignment `json:"assignment"`
	ArticleStatus articles.Status          `json:"article_status"`
	Progress      articles.Progress        `json:"progress"`
}

// SetFieldValue records an extracted value. A non-empty value completes the
// assignment and moves an ASSIGNED article to IN_PROGRESS; an empty value
// clears it. Approved fields and approved articles are read-only.
func (s *Service) SetFieldValue(ctx context.Context, actorID, assignmentID uint, in ValueInput) (*ValueResult, error) {
	fa, a, err := s.loadAssignment(ctx, s.db, assignmentID)
	if err != nil {
		return nil, err
	}
	m, err := guard.Membership(ctx, s.db, actorID, a.ProjectID)
	if err != nil {
		return nil, err
	}
	if !access.CanWorkOn(m, *a) {
		return nil, apierr.Forbidden("only the assignee, the uploader or a project lead can edit this article")
	}
	if a.Status == articles.StatusApproved {
		return nil, apierr.InvalidState("article is approved; ask a supervisor for a correction to edit it")
	}
	if fa.Approved {
		return nil, apierr.InvalidState("field %s is approved and cannot be edited", fieldCode(fa))
	}
	if fa.Field != nil {
		if err := fa.Field.ValidateValue(in.Value); err != nil {
			return nil, apierr.Validation("%s", err)
		}
	}

	out := &ValueResult{}
	err = s.inTx(ctx, func(tx *gorm.DB, u *unit) error {
		// re-read inside the transaction
		cur, art, err := s.loadAssignment(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if cur.Approved || art.Status == articles.StatusApproved {
			return apierr.InvalidState("field was approved meanwhile")
		}
		now := s.Now()
		old := cur.Value
		changed := cur.SetValue(in.Value, now)
		cols := []string{}
		if changed {
			cols = append(cols, "value", "completed", "completed_at")
		}
		if in.Notes != nil && strings.TrimSpace(*in.Notes) != cur.Notes {
			cur.Notes = strings.TrimSpace(*in.Notes)
			cols = append(cols, "notes")
		}
		if len(cols) > 0 {
			if err := tx.Model(cur).Select(cols).Updates(cur).Error; err != nil {
				return err
			}
		}
		if changed {
			entry := articles.NewChange(art, actorID, articles.ChangeMetadataEdit, fieldCode(cur), old, cur.Value)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		if cur.Completed {
			if _, err := s.transition(tx, u, art, actorID, articles.TriggerValueEntered, now); err != nil {
				return err
			}
		}
		var all []articles.FieldAssignment
		if err := tx.Where("article_id = ?", art.ID).Find(&all).Error; err != nil {
			return err
		}
		out.Assignment = *cur
		out.ArticleStatus = art.Status
		out.Progress = articles.ComputeProgress(all)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
