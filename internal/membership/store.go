package membership

import (
	"context"
	"errors"

	"github.com/huangang/projecthub/internal/models"
)

var (
	// ErrRecordNotFound is returned by Store lookups, updates and deletes
	// when no row matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateRecord is returned by Store inserts that violate the
	// (project, user) uniqueness of contributors.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// AccessSource lists project ids reachable by a user through each of the
// two independent paths: ownership and contribution.
type AccessSource interface {
	OwnedProjectIDs(ctx context.Context, userID uint) ([]uint, error)
	ContributedProjectIDs(ctx context.Context, userID uint) ([]uint, error)
}

// RoleSource looks up the contributor record of a user in a project.
type RoleSource interface {
	FindContributorByUser(ctx context.Context, projectID, userID uint) (*models.Contributor, error)
}

// Store is the persistence collaborator. It exposes primitive record
// operations only; all rules live in this package.
type Store interface {
	AccessSource
	RoleSource

	FindProject(ctx context.Context, projectID uint) (*models.Project, error)
	InsertProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, projectID uint) error

	FindContributor(ctx context.Context, contributorID uint) (*models.Contributor, error)
	ListContributors(ctx context.Context, projectID uint) ([]models.Contributor, error)
	CountContributorsByRole(ctx context.Context, projectID uint, role models.Role) (int64, error)
	InsertContributor(ctx context.Context, contributor *models.Contributor) error
	UpdateContributorRole(ctx context.Context, contributorID uint, role models.Role) error
	DeleteContributor(ctx context.Context, contributorID uint) error
	DeleteProjectContributors(ctx context.Context, projectID uint) error

	// InTx runs fn inside a single transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
	// InProjectTx runs fn inside a transaction that holds an exclusive
	// lock on the project row, serializing writers of that project. It
	// returns ErrRecordNotFound without calling fn if the project is absent.
	InProjectTx(ctx context.Context, projectID uint, fn func(tx Store) error) error
}
