package stats

import (
	"context"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"

	"gorm.io/gorm"
)

// RefreshProjectCounters recomputes a project's total and approved article counts.
func RefreshProjectCounters(ctx context.Context, db *gorm.DB, projectID uint) error {
	var total, worked int64
	q := db.WithContext(ctx).Model(&articles.Article{}).Where("project_id = ?", projectID)
	if err := q.Count(&total).Error; err != nil {
		return err
	}
	err := db.WithContext(ctx).Model(&articles.Article{}).
		Where("project_id = ? AND status = ?", projectID, articles.StatusApproved).
		Count(&worked).Error
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&projects.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"total_articles": total, "worked_articles": worked}).Error
}

// StatusCounts returns the number of articles per status, with every status present.
func StatusCounts(ctx context.Context, db *gorm.DB, projectID uint) (map[articles.Status]int64, error) {
	type row struct {
		Status articles.Status
		N      int64
	}
	var rows []row
	err := db.WithContext(ctx).Model(&articles.Article{}).
		Select("status, count(*) as n").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[articles.Status]int64, 5)
	for _, s := range articles.AllStatuses() {
		out[s] = 0
	}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
