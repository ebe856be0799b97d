package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metareview/internal/domain/articles"
	"metareview/internal/infra/storage"
	"metareview/internal/pkg/apierr"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/notify"
	"metareview/internal/services/stats"

	"gorm.io/gorm"
)

// Service owns a project's article library: uploads, manual entries,
// deletions and BibTeX exports.
type Service struct {
	db    *gorm.DB
	log   *logger.Logger
	pub   notify.Publisher
	store storage.Store
	Now   func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger, pub notify.Publisher, store storage.Store) *Service {
	return &Service{
		db:    db,
		log:   log.With("service", "library"),
		pub:   pub,
		store: store,
		Now:   time.Now,
	}
}

func (s *Service) refresh(ctx context.Context, projectID uint) {
	if err := stats.RefreshProjectCounters(ctx, s.db, projectID); err != nil {
		s.log.Warn("refresh project counters", "project_id", projectID, "error", err)
	}
}

func (s *Service) loadArticle(ctx context.Context, id uint) (*articles.Article, error) {
	var a articles.Article
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("article not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// existingKeys returns the citation keys already used in a project.
func existingKeys(tx *gorm.DB, projectID uint) (map[string]struct{}, error) {
	var keys []string
	if err := tx.Model(&articles.Article{}).Where("project_id = ?", projectID).Pluck("citation_key", &keys).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out, nil
}

// uniqueKey appends _1, _2, ... to base until it is unused.
func uniqueKey(base string, used map[string]struct{}) string {
	if _, taken := used[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		k := fmt.Sprintf("%s_%d", base, i)
		if _, taken := used[k]; !taken {
			return k
		}
	}
}
