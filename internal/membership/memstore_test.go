package membership

import (
	"context"
	"sort"
	"sync"

	"github.com/huangang/projecthub/internal/models"
)

type memData struct {
	mu           sync.Mutex
	projects     map[uint]models.Project
	contributors map[uint]models.Contributor
	nextID       uint
	err          error
}

// memStore is an in-memory Store. Transactions hold a single mutex and
// roll back by restoring a snapshot.
type memStore struct {
	d      *memData
	locked bool
}

func newMemStore() *memStore {
	return &memStore{d: &memData{
		projects:     map[uint]models.Project{},
		contributors: map[uint]models.Contributor{},
	}}
}

func (s *memStore) lock() func() {
	if s.locked {
		return func() {}
	}
	s.d.mu.Lock()
	return s.d.mu.Unlock
}

func (s *memStore) failing(err error) { s.d.err = err }

func (s *memStore) OwnedProjectIDs(_ context.Context, userID uint) ([]uint, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	var ids []uint
	for _, p := range s.d.projects {
		if p.OwnerID == userID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (s *memStore) ContributedProjectIDs(_ context.Context, userID uint) ([]uint, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	var ids []uint
	for _, c := range s.d.contributors {
		if c.UserID == userID {
			ids = append(ids, c.ProjectID)
		}
	}
	return ids, nil
}

func (s *memStore) FindContributorByUser(_ context.Context, projectID, userID uint) (*models.Contributor, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	for _, c := range s.d.contributors {
		if c.ProjectID == projectID && c.UserID == userID {
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *memStore) FindProject(_ context.Context, projectID uint) (*models.Project, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	p, ok := s.d.projects[projectID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (s *memStore) InsertProject(_ context.Context, project *models.Project) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	s.d.nextID++
	project.ID = s.d.nextID
	s.d.projects[project.ID] = *project
	return nil
}

func (s *memStore) FindContributor(_ context.Context, contributorID uint) (*models.Contributor, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	c, ok := s.d.contributors[contributorID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &c, nil
}

func (s *memStore) ListContributors(_ context.Context, projectID uint) ([]models.Contributor, error) {
	defer s.lock()()
	if s.d.err != nil {
		return nil, s.d.err
	}
	var list []models.Contributor
	for _, c := range s.d.contributors {
		if c.ProjectID == projectID {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list, nil
}

func (s *memStore) CountContributorsByRole(_ context.Context, projectID uint, role models.Role) (int64, error) {
	defer s.lock()()
	if s.d.err != nil {
		return 0, s.d.err
	}
	var n int64
	for _, c := range s.d.contributors {
		if c.ProjectID == projectID && c.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *memStore) InsertContributor(_ context.Context, contributor *models.Contributor) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	for _, c := range s.d.contributors {
		if c.ProjectID == contributor.ProjectID && c.UserID == contributor.UserID {
			return ErrDuplicateRecord
		}
	}
	s.d.nextID++
	contributor.ID = s.d.nextID
	s.d.contributors[contributor.ID] = *contributor
	return nil
}

func (s *memStore) UpdateContributorRole(_ context.Context, contributorID uint, role models.Role) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	c, ok := s.d.contributors[contributorID]
	if !ok {
		return ErrRecordNotFound
	}
	c.Role = role
	s.d.contributors[contributorID] = c
	return nil
}

func (s *memStore) DeleteContributor(_ context.Context, contributorID uint) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	if _, ok := s.d.contributors[contributorID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.d.contributors, contributorID)
	return nil
}

func (s *memStore) DeleteProject(_ context.Context, projectID uint) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	if _, ok := s.d.projects[projectID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.d.projects, projectID)
	return nil
}

func (s *memStore) DeleteProjectContributors(_ context.Context, projectID uint) error {
	defer s.lock()()
	if s.d.err != nil {
		return s.d.err
	}
	for id, c := range s.d.contributors {
		if c.ProjectID == projectID {
			delete(s.d.contributors, id)
		}
	}
	return nil
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	defer s.lock()()
	projects := make(map[uint]models.Project, len(s.d.projects))
	for k, v := range s.d.projects {
		projects[k] = v
	}
	contributors := make(map[uint]models.Contributor, len(s.d.contributors))
	for k, v := range s.d.contributors {
		contributors[k] = v
	}

	if err := fn(&memStore{d: s.d, locked: true}); err != nil {
		s.d.projects = projects
		s.d.contributors = contributors
		return err
	}
	return nil
}

func (s *memStore) InProjectTx(ctx context.Context, projectID uint, fn func(tx Store) error) error {
	return s.InTx(ctx, func(tx Store) error {
		if _, err := tx.FindProject(ctx, projectID); err != nil {
			return err
		}
		return fn(tx)
	})
}
