package membership

import (
	"context"
	"errors"
	"time"

	"github.com/huangang/projecthub/internal/models"
)

// Manager is the only writer of contributor records. Each mutation runs
// its precondition checks and its write inside one project-locked
// transaction.
type Manager struct {
	store Store
	now   func() time.Time
}

type ManagerOption func(*Manager)

// WithClock overrides the clock used for joined timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) withStore(tx Store) *Manager {
	return &Manager{store: tx, now: m.now}
}

// CreateProject inserts project and its owner's OWNER contributor in one
// transaction. project.OwnerID must be set; Status defaults to ACTIVE.
func (m *Manager) CreateProject(ctx context.Context, project *models.Project) (*models.Contributor, error) {
	if project.Status == "" {
		project.Status = models.ProjectActive
	}

	var owner *models.Contributor
	err := m.store.InTx(ctx, func(tx Store) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return unavailable(err)
		}
		c, err := m.withStore(tx).CreateOwnerMembership(ctx, project.ID, project.OwnerID)
		if err != nil {
			return err
		}
		owner = c
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return owner, nil
}

// CreateOwnerMembership records the owner's OWNER contributor. It is meant
// to run once, inside the transaction that creates the project.
func (m *Manager) CreateOwnerMembership(ctx context.Context, projectID, userID uint) (*models.Contributor, error) {
	project, err := m.store.FindProject(ctx, projectID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	// OWNER is reserved for the project's recorded owner.
	if project.OwnerID != userID {
		return nil, ErrInvalidRole
	}

	return m.insert(ctx, m.store, projectID, userID, models.RoleOwner)
}

// AddContributor grants role to a user who is not yet a contributor.
// OWNER cannot be granted here.
func (m *Manager) AddContributor(ctx context.Context, projectID, userID uint, role models.Role) (*models.Contributor, error) {
	if !role.Valid() || role == models.RoleOwner {
		return nil, ErrInvalidRole
	}

	var added *models.Contributor
	err := m.store.InProjectTx(ctx, projectID, func(tx Store) error {
		c, err := m.insert(ctx, tx, projectID, userID, role)
		added = c
		return err
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return added, nil
}

func (m *Manager) insert(ctx context.Context, store Store, projectID, userID uint, role models.Role) (*models.Contributor, error) {
	_, err := store.FindContributorByUser(ctx, projectID, userID)
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, unavailable(err)
	}

	c := &models.Contributor{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  m.now().UTC(),
	}
	if err := store.InsertContributor(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return nil, ErrAlreadyMember
		}
		return nil, unavailable(err)
	}
	return c, nil
}

// UpdateRole overwrites a contributor's role and reports the role it
// replaced, read under the project lock. The joined timestamp is kept.
// OWNER can be neither the current nor the new role
// (ErrCannotModifyOwner). Demoting the last ADMIN of a project fails
// with ErrCannotRemoveLastAdmin.
func (m *Manager) UpdateRole(ctx context.Context, projectID, contributorID uint, newRole models.Role) (*models.Contributor, models.Role, error) {
	if !newRole.Valid() {
		return nil, "", ErrInvalidRole
	}

	var (
		updated  *models.Contributor
		previous models.Role
	)
	err := m.store.InProjectTx(ctx, projectID, func(tx Store) error {
		c, err := findInProject(ctx, tx, projectID, contributorID)
		if err != nil {
			return err
		}
		if c.Role == models.RoleOwner || newRole == models.RoleOwner {
			return ErrCannotModifyOwner
		}
		previous = c.Role
		if c.Role == newRole {
			updated = c
			return nil
		}
		if c.Role == models.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, tx, projectID); err != nil {
				return err
			}
		}
		if err := tx.UpdateContributorRole(ctx, c.ID, newRole); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrContributorNotFound
			}
			return unavailable(err)
		}
		c.Role = newRole
		updated = c
		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil, "", ErrContributorNotFound
	}
	if err != nil {
		return nil, "", unavailable(err)
	}
	return updated, previous, nil
}

// RemoveContributor deletes a contributor record. The owner cannot be
// removed, nor can the last ADMIN.
func (m *Manager) RemoveContributor(ctx context.Context, projectID, contributorID uint) (*models.Contributor, error) {
	var removed *models.Contributor
	err := m.store.InProjectTx(ctx, projectID, func(tx Store) error {
		c, err := findInProject(ctx, tx, projectID, contributorID)
		if err != nil {
			return err
		}
		switch c.Role {
		case models.RoleOwner:
			return ErrCannotRemoveOwner
		case models.RoleAdmin:
			if err := ensureAnotherAdmin(ctx, tx, projectID); err != nil {
				return err
			}
		}
		if err := tx.DeleteContributor(ctx, c.ID); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrContributorNotFound
			}
			return unavailable(err)
		}
		removed = c
		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrContributorNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return removed, nil
}

// DeleteProject removes every contributor of the project and then the
// project itself under the project lock, so no membership can be added
// to a project that is going away. The removed contributors are returned.
func (m *Manager) DeleteProject(ctx context.Context, projectID uint) ([]models.Contributor, error) {
	var removed []models.Contributor
	err := m.store.InProjectTx(ctx, projectID, func(tx Store) error {
		list, err := tx.ListContributors(ctx, projectID)
		if err != nil {
			return unavailable(err)
		}
		if err := tx.DeleteProjectContributors(ctx, projectID); err != nil {
			return unavailable(err)
		}
		if err := tx.DeleteProject(ctx, projectID); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return unavailable(err)
		}
		removed = list
		return nil
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return removed, nil
}

// ListContributors returns the project's contributors by joined time,
// oldest first. An unknown project yields an empty slice.
func (m *Manager) ListContributors(ctx context.Context, projectID uint) ([]models.Contributor, error) {
	list, err := m.store.ListContributors(ctx, projectID)
	if err != nil {
		return nil, unavailable(err)
	}
	if list == nil {
		list = []models.Contributor{}
	}
	return list, nil
}

func findInProject(ctx context.Context, store Store, projectID, contributorID uint) (*models.Contributor, error) {
	c, err := store.FindContributor(ctx, contributorID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrContributorNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if c.ProjectID != projectID {
		return nil, ErrContributorNotFound
	}
	return c, nil
}

// ensureAnotherAdmin fails unless the project has at least two ADMIN
// contributors. OWNER does not count toward the ADMIN pool.
func ensureAnotherAdmin(ctx context.Context, store Store, projectID uint) error {
	admins, err := store.CountContributorsByRole(ctx, projectID, models.RoleAdmin)
	if err != nil {
		return unavailable(err)
	}
	if admins < 2 {
		return ErrCannotRemoveLastAdmin
	}
	return nil
}
