package membership

import (
	"context"
	"math"
	"sort"

	"metareview/internal/domain/projects"
)

type Bucket struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

type RecentProject struct {
	ProjectID uint          `json:"project_id"`
	Name      string        `json:"name"`
	Role      projects.Role `json:"role"`
	Progress  float64       `json:"progress"`
}

// Overview is the caller's home page summary across their projects.
type Overview struct {
	TotalProjects   int64           `json:"total_projects"`
	Owned           int64           `json:"owned"`
	Collaborating   int64           `json:"collaborating"`
	PendingRequests int64           `json:"pending_requests"`
	Recent          []RecentProject `json:"recent"`
	ByCategory      []Bucket        `json:"by_category"`
	ByStatus        []Bucket        `json:"by_status"`
}

func (s *Service) Overview(ctx context.Context, actorID uint) (*Overview, error) {
	var ms []projects.Membership
	if err := s.db.WithContext(ctx).Preload("Project").
		Where("user_id = ?", actorID).
		Order("joined_at DESC").Order("id DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	o := &Overview{TotalProjects: int64(len(ms)), Recent: []RecentProject{}}
	var led []uint
	byCategory := map[string]int64{}
	byStatus := map[string]int64{}
	for _, m := range ms {
		if m.IsOwner() {
			o.Owned++
		} else {
			o.Collaborating++
		}
		if m.Leads() {
			led = append(led, m.ProjectID)
		}
		if m.Project == nil {
			continue
		}
		if len(o.Recent) < 5 {
			o.Recent = append(o.Recent, RecentProject{
				ProjectID: m.ProjectID,
				Name:      m.Project.Name,
				Role:      m.Role,
				Progress:  m.Project.Progress(),
			})
		}
		byCategory[string(m.Project.Category)]++
		byStatus[string(m.Project.Status)]++
	}
	if len(led) > 0 {
		if err := s.db.WithContext(ctx).Model(&projects.JoinRequest{}).
			Where("project_id IN ? AND status = ?", led, projects.RequestPending).
			Count(&o.PendingRequests).Error; err != nil {
			return nil, err
		}
	}
	o.ByCategory = buckets(byCategory, o.TotalProjects)
	o.ByStatus = buckets(byStatus, o.TotalProjects)
	return o, nil
}

// buckets orders by total, largest first, then by name.
func buckets(counts map[string]int64, total int64) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for name, n := range counts {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(n)/float64(total)*1000) / 10
		}
		out = append(out, Bucket{Name: name, Total: n, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}
