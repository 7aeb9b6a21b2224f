package services

import (
	"context"
	"strings"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/pkg/logger"
	"gorm.io/gorm"
)

// AccessInvalidator drops cached accessible-project sets. The Redis
// access cache implements it.
type AccessInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint) error
}

type ProjectService struct {
	db          *gorm.DB
	manager     *membership.Manager
	scope       membership.Scope
	invalidator AccessInvalidator
	events      EventQueue
}

func NewProjectService(db *gorm.DB, manager *membership.Manager, scope membership.Scope, invalidator AccessInvalidator, events EventQueue) *ProjectService {
	return &ProjectService{
		db:          db,
		manager:     manager,
		scope:       scope,
		invalidator: invalidator,
		events:      events,
	}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Status   string `form:"status"`
}

// ProjectItem is a project as seen by one caller.
type ProjectItem struct {
	models.Project
	Role models.Role `json:"role"`
}

type ProjectListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []ProjectItem `json:"items"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        string  `json:"name" binding:"max=200"`
	Description *string `json:"description"`
}

// List returns the caller's accessible projects, paginated. Visibility
// comes only from the access scope.
func (s *ProjectService) List(ctx context.Context, userID uint, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	resp := &ProjectListResponse{
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    []ProjectItem{},
	}

	accessible, err := s.scope.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accessible) == 0 {
		return resp, nil
	}

	query := s.db.WithContext(ctx).Model(&models.Project{}).Where("id IN ?", accessible.IDs())
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(req.Status))
	}

	if err := query.Count(&resp.Total).Error; err != nil {
		return nil, dbError(err, nil)
	}

	var projects []models.Project
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, dbError(err, nil)
	}

	roles, err := s.callerRoles(ctx, userID, projects)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		resp.Items = append(resp.Items, ProjectItem{Project: p, Role: roles[p.ID]})
	}
	return resp, nil
}

func (s *ProjectService) callerRoles(ctx context.Context, userID uint, projects []models.Project) (map[uint]models.Role, error) {
	roles := make(map[uint]models.Role, len(projects))
	if len(projects) == 0 {
		return roles, nil
	}

	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
		if p.OwnerID == userID {
			roles[p.ID] = models.RoleOwner
		}
	}

	var contributors []models.Contributor
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND project_id IN ?", userID, ids).
		Find(&contributors).Error; err != nil {
		return nil, dbError(err, nil)
	}
	for _, c := range contributors {
		if _, owner := roles[c.ProjectID]; !owner {
			roles[c.ProjectID] = c.Role
		}
	}
	return roles, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, dbError(err, membership.ErrProjectNotFound)
	}
	return &project, nil
}

// Create inserts the project together with its owner's membership.
func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest, ownerID uint) (*models.Project, error) {
	project := &models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      models.ProjectActive,
		OwnerID:     ownerID,
	}

	if _, err := s.manager.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	s.invalidate(ctx, ownerID)
	event := NewMembershipEvent(EventProjectCreated, project.ID, ownerID, ownerID)
	event.Role = models.RoleOwner
	s.publish(ctx, event)

	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, dbError(err, nil)
	}
	return s.GetByID(ctx, id)
}

// SetStatus archives or reactivates a project. Access rules do not depend
// on the status.
func (s *ProjectService) SetStatus(ctx context.Context, id uint, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	result := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return nil, dbError(result.Error, nil)
	}
	if result.RowsAffected == 0 {
		return nil, membership.ErrProjectNotFound
	}
	return s.GetByID(ctx, id)
}

// Delete removes the project with its contributors, then its tasks.
// Tasks of a deleted project are unreachable through any gated route, so
// a failed task cleanup is logged and does not fail the call.
func (s *ProjectService) Delete(ctx context.Context, id, actorID uint) error {
	removed, err := s.manager.DeleteProject(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
		logger.Warn().Err(err).Uint("project_id", id).Msg("[Project] task cleanup failed")
	}

	affected := make([]uint, 0, len(removed))
	for _, c := range removed {
		affected = append(affected, c.UserID)
	}
	s.invalidate(ctx, affected...)
	s.publish(ctx, NewMembershipEvent(EventProjectDeleted, id, actorID, actorID))
	return nil
}

func (s *ProjectService) invalidate(ctx context.Context, userIDs ...uint) {
	invalidate(ctx, s.invalidator, userIDs...)
}

func (s *ProjectService) publish(ctx context.Context, event *MembershipEvent) {
	publish(ctx, s.events, event)
}

func invalidate(ctx context.Context, invalidator AccessInvalidator, userIDs ...uint) {
	if invalidator == nil || len(userIDs) == 0 {
		return
	}
	if err := invalidator.Invalidate(ctx, userIDs...); err != nil {
		logger.Warn().Err(err).Uints("user_ids", userIDs).Msg("[Access] cache invalidation failed")
	}
}

func publish(ctx context.Context, events EventQueue, event *MembershipEvent) {
	if events == nil {
		return
	}
	if err := events.Enqueue(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("[EventQueue] enqueue failed")
	}
}
