package membership

import (
	"context"
	"errors"

	"github.com/huangang/projecthub/internal/models"
)

// Evaluator answers role and permission questions for one user in one
// project. "No role" is a normal outcome, not an error.
type Evaluator struct {
	source RoleSource
}

func NewEvaluator(source RoleSource) *Evaluator {
	return &Evaluator{source: source}
}

// UserRoleFor returns the user's role in the project. ok is false when
// the user is not a contributor.
func (e *Evaluator) UserRoleFor(ctx context.Context, userID, projectID uint) (role models.Role, ok bool, err error) {
	c, err := e.source.FindContributorByUser(ctx, projectID, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err)
	}
	return c.Role, true, nil
}

// HasPermission reports whether the user's role meets required. A store
// failure is returned as an error and must not be read as a denial.
func (e *Evaluator) HasPermission(ctx context.Context, userID, projectID uint, required models.Role) (bool, error) {
	role, ok, err := e.UserRoleFor(ctx, userID, projectID)
	if err != nil || !ok {
		return false, err
	}
	return Meets(role, required), nil
}
