package services

import (
	"errors"
	"fmt"

	"github.com/huangang/projecthub/internal/membership"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrUsernameTaken          = errors.New("username already exists")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrUserDisabled           = errors.New("user is disabled")
	ErrTaskNotFound           = errors.New("task not found")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrAssigneeNotContributor = errors.New("assignee is not a contributor of this project")
)

// dbError maps gorm.ErrRecordNotFound to notFound and any other database
// failure to membership.ErrStoreUnavailable.
func dbError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	default:
		return fmt.Errorf("%w: %w", membership.ErrStoreUnavailable, err)
	}
}
