package services

import (
	"context"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"gorm.io/gorm"
)

// DashboardService reports over the caller's accessible projects only.
// It never decides visibility itself.
type DashboardService struct {
	db    *gorm.DB
	scope membership.Scope
}

func NewDashboardService(db *gorm.DB, scope membership.Scope) *DashboardService {
	return &DashboardService{db: db, scope: scope}
}

type DashboardStats struct {
	Projects         int64 `json:"projects"`
	ActiveProjects   int64 `json:"active_projects"`
	ArchivedProjects int64 `json:"archived_projects"`
	Tasks            int64 `json:"tasks"`
	TodoTasks        int64 `json:"todo_tasks"`
	InProgressTasks  int64 `json:"in_progress_tasks"`
	DoneTasks        int64 `json:"done_tasks"`
}

type ProjectStats struct {
	ProjectID    uint                 `json:"project_id"`
	ProjectName  string               `json:"project_name"`
	Status       models.ProjectStatus `json:"status"`
	TaskCount    int64                `json:"task_count"`
	OpenTasks    int64                `json:"open_tasks"`
	Contributors int64                `json:"contributors"`
}

type DashboardResponse struct {
	Stats        DashboardStats `json:"stats"`
	ProjectStats []ProjectStats `json:"project_stats"`
}

func (s *DashboardService) GetStats(ctx context.Context, userID uint) (*DashboardResponse, error) {
	resp := &DashboardResponse{ProjectStats: []ProjectStats{}}

	accessible, err := s.scope.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accessible) == 0 {
		return resp, nil
	}
	ids := accessible.IDs()
	db := s.db.WithContext(ctx)

	var projects []models.Project
	if err := db.Select("id", "name", "status").Where("id IN ?", ids).Order("name ASC, id ASC").Find(&projects).Error; err != nil {
		return nil, dbError(err, nil)
	}

	var taskRows []struct {
		ProjectID uint
		Status    models.TaskStatus
		Count     int64
	}
	if err := db.Model(&models.Task{}).
		Select("project_id, status, COUNT(*) as count").
		Where("project_id IN ?", ids).
		Group("project_id, status").
		Scan(&taskRows).Error; err != nil {
		return nil, dbError(err, nil)
	}

	var memberRows []struct {
		ProjectID uint
		Count     int64
	}
	if err := db.Model(&models.Contributor{}).
		Select("project_id, COUNT(*) as count").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&memberRows).Error; err != nil {
		return nil, dbError(err, nil)
	}

	perProject := make(map[uint]*ProjectStats, len(projects))
	for _, p := range projects {
		resp.ProjectStats = append(resp.ProjectStats, ProjectStats{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Status:      p.Status,
		})
		resp.Stats.Projects++
		if p.Status == models.ProjectArchived {
			resp.Stats.ArchivedProjects++
		} else {
			resp.Stats.ActiveProjects++
		}
	}
	for i := range resp.ProjectStats {
		perProject[resp.ProjectStats[i].ProjectID] = &resp.ProjectStats[i]
	}

	for _, row := range taskRows {
		resp.Stats.Tasks += row.Count
		switch row.Status {
		case models.TaskTodo:
			resp.Stats.TodoTasks += row.Count
		case models.TaskInProgress:
			resp.Stats.InProgressTasks += row.Count
		case models.TaskDone:
			resp.Stats.DoneTasks += row.Count
		}
		if ps, ok := perProject[row.ProjectID]; ok {
			ps.TaskCount += row.Count
			if row.Status != models.TaskDone {
				ps.OpenTasks += row.Count
			}
		}
	}
	for _, row := range memberRows {
		if ps, ok := perProject[row.ProjectID]; ok {
			ps.Contributors = row.Count
		}
	}

	return resp, nil
}
