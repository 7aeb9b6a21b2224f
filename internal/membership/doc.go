// Package membership holds the project access-control model: the role
// hierarchy, access resolution, permission checks and the contributor
// lifecycle with its invariants.
//
// Every project has exactly one OWNER contributor (the project's owner),
// a user is a contributor of a project at most once, OWNER is never
// granted or revoked through role updates, and the last ADMIN contributor
// of a project cannot be removed or demoted.
//
// The package does no logging and no presentation. It returns the error
// kinds declared in errors.go and leaves reporting to the caller.
package membership
