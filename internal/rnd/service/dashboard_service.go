package service

import (
	"context"

	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/repository"
	"github.com/solefab/rndtrack/internal/rnd/stage"
)

// DashboardService 看板统计
type DashboardService struct {
	projects *repository.ProjectRepository
}

func NewDashboardService(projects *repository.ProjectRepository) *DashboardService {
	return &DashboardService{projects: projects}
}

// DashboardStats 看板统计数据
type DashboardStats struct {
	Total      int64                   `json:"total"`
	Active     int64                   `json:"active"`
	Closed     int64                   `json:"closed"`
	OverTarget int64                   `json:"over_target"`
	ByStage    []repository.StageCount `json:"by_stage"`
}

// Stats 按阶段顺序汇总，没有项目的阶段计 0
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	rows, err := s.projects.CountByStage(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[entity.Stage]int64, len(rows))
	for _, r := range rows {
		counts[r.Stage] += r.Count
	}

	stats := &DashboardStats{}
	for _, st := range stage.All() {
		n := counts[st]
		stats.ByStage = append(stats.ByStage, repository.StageCount{Stage: st, Count: n})
		stats.Total += n
		if stage.IsClosed(entity.Project{Stage: st}) {
			stats.Closed += n
		} else {
			stats.Active += n
		}
	}

	stats.OverTarget, err = s.projects.CountOverTarget(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
