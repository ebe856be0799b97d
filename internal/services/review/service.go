// Package review runs the article status machine: field assignment,
// value entry, submission, per-field and whole-article approval, and
// correction requests. Every per-article mutation commits the assignment
// rows, the status write and its change-log rows in one transaction.
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"metareview/internal/domain/articles"
	"metareview/internal/observability"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/notify"
	"metareview/internal/services/stats"

	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	pub notify.Publisher
	Now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, pub notify.Publisher) *Service {
	return &Service{
		db:  db,
		log: log.With("service", "review"),
		pub: pub,
		Now: time.Now,
	}
}

// ItemError reports why one article of a bulk call was skipped.
type ItemError struct {
	ArticleID uint   `json:"article_id"`
	Error     string `json:"error"`
}

// unit collects side effects that only become visible after commit.
type unit struct {
	events   []notify.Event
	moves    [][2]articles.Status
	counters map[uint]struct{}
}

func (u *unit) publish(ev notify.Event) { u.events = append(u.events, ev) }

func (u *unit) refresh(projectID uint) {
	if u.counters == nil {
		u.counters = map[uint]struct{}{}
	}
	u.counters[projectID] = struct{}{}
}

// inTx runs fn in a transaction and, once committed, publishes the unit's
// events, records transitions and refreshes project counters.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB, u *unit) error) error {
	u := &unit{}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, u)
	}); err != nil {
		return err
	}
	for _, m := range u.moves {
		observability.ArticleTransitions.WithLabelValues(string(m[0]), string(m[1])).Inc()
	}
	for pid := range u.counters {
		if err := stats.RefreshProjectCounters(ctx, s.db, pid); err != nil {
			s.log.Warn("refresh project counters", "project_id", pid, "error", err)
		}
	}
	s.pub.Publish(u.events...)
	return nil
}

// transition applies t to a, persisting status, timestamps and a change-log row.
func (s *Service) transition(tx *gorm.DB, u *unit, a *articles.Article, actorID uint, t articles.Trigger, now time.Time) (bool, error) {
	next, err := articles.Next(a.Status, t)
	if err != nil {
		return false, invalidState(err)
	}
	from, changed := a.Transition(next, now)
	if !changed {
		return false, nil
	}
	err = tx.Model(a).
		Select("status", "assigned_at", "work_started_at", "submitted_at", "approved_at", "reviewed_at", "updated_at").
		Updates(a).Error
	if err != nil {
		return false, fmt.Errorf("update article status: %w", err)
	}
	entry := articles.StatusChange(a, actorID, from, next)
	if t == articles.TriggerFieldsAttached && from == articles.StatusApproved {
		entry.Kind = articles.ChangeReactivated
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, fmt.Errorf("write change log: %w", err)
	}
	u.moves = append(u.moves, [2]articles.Status{from, next})
	if from == articles.StatusApproved || next == articles.StatusApproved {
		u.refresh(a.ProjectID)
	}
	return true, nil
}

func invalidState(err error) error {
	return apierr.New(http.StatusBadRequest, apierr.CodeInvalidState, err)
}

func (s *Service) loadArticle(ctx context.Context, db *gorm.DB, id uint) (*articles.Article, error) {
	var a articles.Article
	err := db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("article not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) loadAssignment(ctx context.Context, db *gorm.DB, id uint) (*articles.FieldAssignment, *articles.Article, error) {
	var fa articles.FieldAssignment
	err := db.WithContext(ctx).Preload("Field").First(&fa, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apierr.NotFound("field assignment not found")
	}
	if err != nil {
		return nil, nil, err
	}
	a, err := s.loadArticle(ctx, db, fa.ArticleID)
	if err != nil {
		return nil, nil, err
	}
	return &fa, a, nil
}

func articleLink(a *articles.Article) string {
	return fmt.Sprintf("/articles/%d", a.ID)
}

func fieldCode(fa *articles.FieldAssignment) string {
	if fa.Field != nil {
		return fa.Field.Code
	}
	return fmt.Sprintf("field:%d", fa.FieldID)
}
