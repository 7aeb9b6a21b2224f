package membership

import (
	"context"
	"sort"
)

// ProjectSet is a set of project ids.
type ProjectSet map[uint]struct{}

func NewProjectSet(ids ...uint) ProjectSet {
	s := make(ProjectSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ProjectSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s ProjectSet) IDs() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Scope computes which projects a user may reach. Listing, search,
// detail and reporting code must filter through a Scope.
type Scope interface {
	AccessibleProjects(ctx context.Context, userID uint) (ProjectSet, error)
}

// Resolver is the store-backed Scope.
type Resolver struct {
	source AccessSource
}

func NewResolver(source AccessSource) *Resolver {
	return &Resolver{source: source}
}

// AccessibleProjects unites owned and contributed projects. Ownership is
// consulted on its own so an owner keeps access even while the OWNER
// contributor record is not yet visible. A user with no access gets an
// empty set and a nil error.
func (r *Resolver) AccessibleProjects(ctx context.Context, userID uint) (ProjectSet, error) {
	owned, err := r.source.OwnedProjectIDs(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	contributed, err := r.source.ContributedProjectIDs(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}

	set := NewProjectSet(owned...)
	for _, id := range contributed {
		set[id] = struct{}{}
	}
	return set, nil
}
