// Package store implements membership.Store on top of gorm.
package store

import (
	"context"
	"errors"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists projects and contributors. The *gorm.DB must be
// opened with TranslateError enabled so unique violations are detected.
type GormStore struct {
	db *gorm.DB
}

var _ membership.Store = (*GormStore)(nil)

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return membership.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return membership.ErrDuplicateRecord
	}
	return err
}

func (s *GormStore) OwnedProjectIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("owner_id = ?", userID).
		Pluck("id", &ids).Error
	return ids, translate(err)
}

func (s *GormStore) ContributedProjectIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Contributor{}).
		Where("user_id = ?", userID).
		Distinct("project_id").
		Pluck("project_id", &ids).Error
	return ids, translate(err)
}

func (s *GormStore) FindProject(ctx context.Context, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (s *GormStore) InsertProject(ctx context.Context, project *models.Project) error {
	return translate(s.db.WithContext(ctx).Create(project).Error)
}

func (s *GormStore) DeleteProject(ctx context.Context, projectID uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Project{}, projectID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return membership.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) FindContributor(ctx context.Context, contributorID uint) (*models.Contributor, error) {
	var c models.Contributor
	if err := s.db.WithContext(ctx).First(&c, contributorID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) FindContributorByUser(ctx context.Context, projectID, userID uint) (*models.Contributor, error) {
	var c models.Contributor
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) ListContributors(ctx context.Context, projectID uint) ([]models.Contributor, error) {
	var list []models.Contributor
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("joined_at ASC, id ASC").
		Find(&list).Error
	return list, translate(err)
}

func (s *GormStore) CountContributorsByRole(ctx context.Context, projectID uint, role models.Role) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Contributor{}).
		Where("project_id = ? AND role = ?", projectID, role).
		Count(&n).Error
	return n, translate(err)
}

func (s *GormStore) InsertContributor(ctx context.Context, contributor *models.Contributor) error {
	return translate(s.db.WithContext(ctx).Create(contributor).Error)
}

func (s *GormStore) UpdateContributorRole(ctx context.Context, contributorID uint, role models.Role) error {
	result := s.db.WithContext(ctx).Model(&models.Contributor{}).
		Where("id = ?", contributorID).
		Update("role", role)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return membership.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteContributor(ctx context.Context, contributorID uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Contributor{}, contributorID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return membership.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteProjectContributors(ctx context.Context, projectID uint) error {
	return translate(s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Contributor{}).Error)
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx membership.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// InProjectTx locks the project row with SELECT ... FOR UPDATE. SQLite
// has no row locks; its single-writer transactions give the same
// serialization.
func (s *GormStore) InProjectTx(ctx context.Context, projectID uint, fn func(tx membership.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&project, projectID).Error
		if err != nil {
			return translate(err)
		}
		return fn(&GormStore{db: tx})
	})
}
