package membership

import (
	"errors"
	"fmt"
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrContributorNotFound = errors.New("contributor not found")
	ErrAlreadyMember       = errors.New("user is already a contributor of this project")
	ErrInvalidRole         = errors.New("invalid role")

	ErrCannotModifyOwner     = errors.New("the owner's role cannot be changed")
	ErrCannotRemoveOwner     = errors.New("the owner cannot be removed from the project")
	ErrCannotRemoveLastAdmin = errors.New("the last admin of a project cannot be removed")

	// ErrStoreUnavailable wraps transient infrastructure failures,
	// including context deadlines on store calls.
	ErrStoreUnavailable = errors.New("membership store unavailable")
)

var kinds = []error{
	ErrProjectNotFound,
	ErrContributorNotFound,
	ErrAlreadyMember,
	ErrInvalidRole,
	ErrCannotModifyOwner,
	ErrCannotRemoveOwner,
	ErrCannotRemoveLastAdmin,
	ErrStoreUnavailable,
}

// IsInvariantViolation reports whether err is one of the Cannot* kinds.
// These are terminal for the call and must not be retried.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrCannotModifyOwner) ||
		errors.Is(err, ErrCannotRemoveOwner) ||
		errors.Is(err, ErrCannotRemoveLastAdmin)
}

// IsNotFound reports whether err signals an absent project or contributor.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrContributorNotFound)
}

// unavailable passes classified errors through and wraps everything else
// as ErrStoreUnavailable.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
