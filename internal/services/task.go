package services

import (
	"context"
	"strings"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"gorm.io/gorm"
)

type TaskService struct {
	db        *gorm.DB
	evaluator *membership.Evaluator
}

func NewTaskService(db *gorm.DB, evaluator *membership.Evaluator) *TaskService {
	return &TaskService{db: db, evaluator: evaluator}
}

type TaskListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status     string `form:"status"`
	AssigneeID uint   `form:"assignee_id"`
	Search     string `form:"search"`
}

type TaskListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Task `json:"items"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,max=300"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssigneeID  *uint  `json:"assignee_id"`
}

type UpdateTaskRequest struct {
	Title       string  `json:"title" binding:"max=300"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	AssigneeID  *uint   `json:"assignee_id"`
	// Unassign clears the assignee; it wins over AssigneeID.
	Unassign bool `json:"unassign"`
}

func (s *TaskService) List(ctx context.Context, projectID uint, req *TaskListRequest) (*TaskListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Task{}).Where("project_id = ?", projectID)
	if req.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(req.Status))
	}
	if req.AssigneeID != 0 {
		query = query.Where("assignee_id = ?", req.AssigneeID)
	}
	if req.Search != "" {
		query = query.Where("title LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, dbError(err, nil)
	}

	tasks := []models.Task{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, dbError(err, nil)
	}

	return &TaskListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    tasks,
	}, nil
}

// Get returns the task only if it belongs to projectID.
func (s *TaskService) Get(ctx context.Context, projectID, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", taskID, projectID).First(&task).Error; err != nil {
		return nil, dbError(err, ErrTaskNotFound)
	}
	return &task, nil
}

func (s *TaskService) Create(ctx context.Context, projectID, creatorID uint, req *CreateTaskRequest) (*models.Task, error) {
	status := models.TaskTodo
	if req.Status != "" {
		status = models.TaskStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
	}
	if req.AssigneeID != nil {
		if err := s.ensureAssignable(ctx, projectID, *req.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		ProjectID:   projectID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      status,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   creatorID,
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, dbError(err, nil)
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, projectID, taskID uint, req *UpdateTaskRequest) (*models.Task, error) {
	task, err := s.Get(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != "" {
		status := models.TaskStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		updates["status"] = status
	}
	switch {
	case req.Unassign:
		updates["assignee_id"] = nil
	case req.AssigneeID != nil:
		if err := s.ensureAssignable(ctx, projectID, *req.AssigneeID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *req.AssigneeID
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, dbError(err, nil)
	}
	return s.Get(ctx, projectID, taskID)
}

func (s *TaskService) Delete(ctx context.Context, projectID, taskID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", taskID, projectID).Delete(&models.Task{})
	if result.Error != nil {
		return dbError(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskService) ensureAssignable(ctx context.Context, projectID, userID uint) error {
	_, ok, err := s.evaluator.UserRoleFor(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssigneeNotContributor
	}
	return nil
}
