package services

import (
	"context"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"gorm.io/gorm"
)

// ContributorService exposes the membership lifecycle to the HTTP layer.
// Every committed change invalidates the target user's cached access set
// and publishes a membership event.
type ContributorService struct {
	db          *gorm.DB
	manager     *membership.Manager
	evaluator   *membership.Evaluator
	invalidator AccessInvalidator
	events      EventQueue
}

func NewContributorService(db *gorm.DB, manager *membership.Manager, evaluator *membership.Evaluator, invalidator AccessInvalidator, events EventQueue) *ContributorService {
	return &ContributorService{
		db:          db,
		manager:     manager,
		evaluator:   evaluator,
		invalidator: invalidator,
		events:      events,
	}
}

type AddContributorRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type UpdateContributorRequest struct {
	Role string `json:"role" binding:"required"`
}

// ContributorItem is a contributor joined with the user's display fields.
type ContributorItem struct {
	models.Contributor
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// RoleResponse is the caller's standing in one project.
type RoleResponse struct {
	ProjectID uint        `json:"project_id"`
	Role      models.Role `json:"role,omitempty"`
	IsMember  bool        `json:"is_member"`
}

func (s *ContributorService) List(ctx context.Context, projectID uint) ([]ContributorItem, error) {
	contributors, err := s.manager.ListContributors(ctx, projectID)
	if err != nil {
		return nil, err
	}

	items := make([]ContributorItem, 0, len(contributors))
	if len(contributors) == 0 {
		return items, nil
	}

	userIDs := make([]uint, 0, len(contributors))
	for _, c := range contributors {
		userIDs = append(userIDs, c.UserID)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "username", "nickname").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, dbError(err, nil)
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, c := range contributors {
		u := byID[c.UserID]
		items = append(items, ContributorItem{Contributor: c, Username: u.Username, Nickname: u.Nickname})
	}
	return items, nil
}

func (s *ContributorService) Add(ctx context.Context, projectID, actorID uint, req *AddContributorRequest) (*models.Contributor, error) {
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, membership.ErrInvalidRole
	}
	if err := s.ensureUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	c, err := s.manager.AddContributor(ctx, projectID, req.UserID, role)
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.invalidator, c.UserID)
	event := NewMembershipEvent(EventContributorAdded, projectID, c.UserID, actorID)
	event.Role = c.Role
	publish(ctx, s.events, event)
	return c, nil
}

func (s *ContributorService) UpdateRole(ctx context.Context, projectID, contributorID, actorID uint, req *UpdateContributorRequest) (*models.Contributor, error) {
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, membership.ErrInvalidRole
	}

	c, previous, err := s.manager.UpdateRole(ctx, projectID, contributorID, role)
	if err != nil {
		return nil, err
	}
	if previous == c.Role {
		return c, nil
	}

	invalidate(ctx, s.invalidator, c.UserID)
	event := NewMembershipEvent(EventRoleUpdated, projectID, c.UserID, actorID)
	event.Role = c.Role
	event.PreviousRole = previous
	publish(ctx, s.events, event)
	return c, nil
}

func (s *ContributorService) Remove(ctx context.Context, projectID, contributorID, actorID uint) error {
	c, err := s.manager.RemoveContributor(ctx, projectID, contributorID)
	if err != nil {
		return err
	}

	invalidate(ctx, s.invalidator, c.UserID)
	event := NewMembershipEvent(EventContributorLeft, projectID, c.UserID, actorID)
	event.PreviousRole = c.Role
	publish(ctx, s.events, event)
	return nil
}

// RoleOf reports the user's role in the project. Non-members get
// IsMember false rather than an error.
func (s *ContributorService) RoleOf(ctx context.Context, userID, projectID uint) (*RoleResponse, error) {
	role, ok, err := s.evaluator.UserRoleFor(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return &RoleResponse{ProjectID: projectID, Role: role, IsMember: ok}, nil
}

func (s *ContributorService) ensureUser(ctx context.Context, userID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return dbError(err, nil)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
