package membership

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huangang/projecthub/internal/models"
)

const (
	userA uint = 100 + iota
	userB
	userC
	userD
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// tick returns a strictly increasing time on every call.
func (c *fixedClock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	clock := &fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewManager(store, WithClock(clock.tick)), store
}

func createProject(t *testing.T, m *Manager, owner uint) *models.Project {
	t.Helper()
	p := &models.Project{Name: "P1", OwnerID: owner}
	if _, err := m.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func addContributor(t *testing.T, m *Manager, projectID, userID uint, role models.Role) *models.Contributor {
	t.Helper()
	c, err := m.AddContributor(context.Background(), projectID, userID, role)
	if err != nil {
		t.Fatalf("AddContributor(%d, %s) error = %v", userID, role, err)
	}
	return c
}

func TestCreateProject_OwnerMembership(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)

	if p.Status != models.ProjectActive {
		t.Errorf("Status = %s, expected ACTIVE", p.Status)
	}

	list, err := m.ListContributors(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListContributors() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 contributor, got %d", len(list))
	}
	if list[0].UserID != userA || list[0].Role != models.RoleOwner {
		t.Errorf("contributor = {%d, %s}, expected {%d, OWNER}", list[0].UserID, list[0].Role, userA)
	}
}

func TestCreateOwnerMembership_Twice(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)

	_, err := m.CreateOwnerMembership(context.Background(), p.ID, userA)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestCreateOwnerMembership_NotOwner(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)

	_, err := m.CreateOwnerMembership(context.Background(), p.ID, userB)
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestCreateProject_RollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	m := NewManager(store)
	p := &models.Project{Name: "dup", OwnerID: userA}
	if _, err := m.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	store.failing(errors.New("disk full"))
	_, err := m.CreateProject(context.Background(), &models.Project{Name: "second", OwnerID: userA})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	store.failing(nil)

	if len(store.d.projects) != 1 {
		t.Errorf("expected 1 project after rollback, got %d", len(store.d.projects))
	}
}

func TestAddContributor_Twice(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	addContributor(t, m, p.ID, userB, models.RoleWrite)

	_, err := m.AddContributor(context.Background(), p.ID, userB, models.RoleRead)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}

	list, _ := m.ListContributors(context.Background(), p.ID)
	count := 0
	for _, c := range list {
		if c.UserID == userB {
			count++
			if c.Role != models.RoleWrite {
				t.Errorf("role = %s, expected WRITE", c.Role)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one record for user B, got %d", count)
	}
}

func TestAddContributor_OwnerAlreadyMember(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)

	_, err := m.AddContributor(context.Background(), p.ID, userA, models.RoleAdmin)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestAddContributor_InvalidRole(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)

	for _, role := range []models.Role{models.RoleOwner, "", "SUPERUSER"} {
		_, err := m.AddContributor(context.Background(), p.ID, userB, role)
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("role %q: expected ErrInvalidRole, got %v", role, err)
		}
	}
}

func TestAddContributor_ProjectNotFound(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.AddContributor(context.Background(), 999, userB, models.RoleRead)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestAddContributor_JoinedAt(t *testing.T) {
	store := newMemStore()
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(store, WithClock(func() time.Time { return joined }))
	p := createProject(t, m, userA)

	c := addContributor(t, m, p.ID, userB, models.RoleRead)
	if !c.JoinedAt.Equal(joined) {
		t.Errorf("JoinedAt = %v, expected %v", c.JoinedAt, joined)
	}
	if c.ID == 0 {
		t.Error("contributor should have an id")
	}
}

func TestUpdateRole_OwnerImmutable(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	list, _ := m.ListContributors(context.Background(), p.ID)
	owner := list[0]

	for _, role := range []models.Role{models.RoleAdmin, models.RoleWrite, models.RoleRead, models.RoleOwner} {
		_, _, err := m.UpdateRole(context.Background(), p.ID, owner.ID, role)
		if !errors.Is(err, ErrCannotModifyOwner) {
			t.Errorf("role %s: expected ErrCannotModifyOwner, got %v", role, err)
		}
	}
}

func TestUpdateRole_ToOwner(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	c := addContributor(t, m, p.ID, userB, models.RoleAdmin)

	_, _, err := m.UpdateRole(context.Background(), p.ID, c.ID, models.RoleOwner)
	if !errors.Is(err, ErrCannotModifyOwner) {
		t.Errorf("expected ErrCannotModifyOwner, got %v", err)
	}
}

func TestUpdateRole_KeepsJoinedAt(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	c := addContributor(t, m, p.ID, userB, models.RoleRead)

	updated, previous, err := m.UpdateRole(context.Background(), p.ID, c.ID, models.RoleWrite)
	if err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	if updated.Role != models.RoleWrite {
		t.Errorf("Role = %s, expected WRITE", updated.Role)
	}
	if previous != models.RoleRead {
		t.Errorf("previous = %s, expected READ", previous)
	}
	if !updated.JoinedAt.Equal(c.JoinedAt) {
		t.Errorf("JoinedAt changed from %v to %v", c.JoinedAt, updated.JoinedAt)
	}
}

func TestUpdateRole_WrongProject(t *testing.T) {
	m, _ := newManager(t)
	p1 := createProject(t, m, userA)
	p2 := createProject(t, m, userA)
	c := addContributor(t, m, p1.ID, userB, models.RoleRead)

	_, _, err := m.UpdateRole(context.Background(), p2.ID, c.ID, models.RoleWrite)
	if !errors.Is(err, ErrContributorNotFound) {
		t.Errorf("expected ErrContributorNotFound, got %v", err)
	}

	_, _, err = m.UpdateRole(context.Background(), 999, c.ID, models.RoleWrite)
	if !errors.Is(err, ErrContributorNotFound) {
		t.Errorf("unknown project: expected ErrContributorNotFound, got %v", err)
	}
}

func TestUpdateRole_LastAdminDemotion(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	b := addContributor(t, m, p.ID, userB, models.RoleAdmin)

	_, _, err := m.UpdateRole(context.Background(), p.ID, b.ID, models.RoleWrite)
	if !errors.Is(err, ErrCannotRemoveLastAdmin) {
		t.Fatalf("expected ErrCannotRemoveLastAdmin, got %v", err)
	}

	addContributor(t, m, p.ID, userC, models.RoleAdmin)
	if _, _, err := m.UpdateRole(context.Background(), p.ID, b.ID, models.RoleWrite); err != nil {
		t.Errorf("demotion with a second admin should succeed, got %v", err)
	}
}

func TestRemoveContributor_Owner(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	list, _ := m.ListContributors(context.Background(), p.ID)

	_, err := m.RemoveContributor(context.Background(), p.ID, list[0].ID)
	if !errors.Is(err, ErrCannotRemoveOwner) {
		t.Errorf("expected ErrCannotRemoveOwner, got %v", err)
	}
}

func TestRemoveContributor_LastAdmin(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	b := addContributor(t, m, p.ID, userB, models.RoleAdmin)
	c := addContributor(t, m, p.ID, userC, models.RoleAdmin)

	if _, err := m.RemoveContributor(context.Background(), p.ID, b.ID); err != nil {
		t.Fatalf("removing one of two admins should succeed, got %v", err)
	}

	_, err := m.RemoveContributor(context.Background(), p.ID, c.ID)
	if !errors.Is(err, ErrCannotRemoveLastAdmin) {
		t.Errorf("expected ErrCannotRemoveLastAdmin, got %v", err)
	}
	if !IsInvariantViolation(err) {
		t.Error("ErrCannotRemoveLastAdmin should be an invariant violation")
	}
}

func TestRemoveContributor_NonAdmin(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	b := addContributor(t, m, p.ID, userB, models.RoleWrite)

	removed, err := m.RemoveContributor(context.Background(), p.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveContributor() error = %v", err)
	}
	if removed.UserID != userB {
		t.Errorf("removed UserID = %d, expected %d", removed.UserID, userB)
	}

	_, err = m.RemoveContributor(context.Background(), p.ID, b.ID)
	if !errors.Is(err, ErrContributorNotFound) {
		t.Errorf("second removal: expected ErrContributorNotFound, got %v", err)
	}
}

func TestRemoveContributor_ConcurrentAdmins(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	b := addContributor(t, m, p.ID, userB, models.RoleAdmin)
	c := addContributor(t, m, p.ID, userC, models.RoleAdmin)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{b.ID, c.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = m.RemoveContributor(context.Background(), p.ID, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrCannotRemoveLastAdmin):
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one removal to succeed, got %d", succeeded)
	}
}

func TestListContributors_Order(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	addContributor(t, m, p.ID, userC, models.RoleRead)
	addContributor(t, m, p.ID, userB, models.RoleWrite)
	addContributor(t, m, p.ID, userD, models.RoleAdmin)

	list, err := m.ListContributors(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListContributors() error = %v", err)
	}
	expected := []uint{userA, userC, userB, userD}
	if len(list) != len(expected) {
		t.Fatalf("expected %d contributors, got %d", len(expected), len(list))
	}
	for i, c := range list {
		if c.UserID != expected[i] {
			t.Errorf("list[%d].UserID = %d, expected %d", i, c.UserID, expected[i])
		}
	}
}

func TestListContributors_Empty(t *testing.T) {
	m, _ := newManager(t)

	list, err := m.ListContributors(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListContributors() error = %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", list)
	}
}

func TestManager_StoreUnavailable(t *testing.T) {
	m, store := newManager(t)
	p := createProject(t, m, userA)
	b := addContributor(t, m, p.ID, userB, models.RoleRead)

	store.failing(context.DeadlineExceeded)

	_, err := m.AddContributor(context.Background(), p.ID, userC, models.RoleRead)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("AddContributor: expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AddContributor: underlying cause should be preserved, got %v", err)
	}
	if _, _, err := m.UpdateRole(context.Background(), p.ID, b.ID, models.RoleWrite); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("UpdateRole: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := m.RemoveContributor(context.Background(), p.ID, b.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("RemoveContributor: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := m.ListContributors(context.Background(), p.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ListContributors: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestUpdateRole_SameRoleReportsPrevious(t *testing.T) {
	m, _ := newManager(t)
	p := createProject(t, m, userA)
	c := addContributor(t, m, p.ID, userB, models.RoleWrite)

	updated, previous, err := m.UpdateRole(context.Background(), p.ID, c.ID, models.RoleWrite)
	if err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	if previous != updated.Role {
		t.Errorf("previous = %s, updated = %s, expected both WRITE", previous, updated.Role)
	}
}

func TestDeleteProject_RemovesContributors(t *testing.T) {
	m, store := newManager(t)
	p := createProject(t, m, userA)
	other := createProject(t, m, userD)
	addContributor(t, m, p.ID, userB, models.RoleAdmin)
	addContributor(t, m, p.ID, userC, models.RoleRead)
	addContributor(t, m, other.ID, userB, models.RoleWrite)

	removed, err := m.DeleteProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if len(removed) != 3 {
		t.Errorf("removed %d contributors, expected 3", len(removed))
	}

	for _, c := range store.d.contributors {
		if c.ProjectID == p.ID {
			t.Errorf("contributor %d of the deleted project survived", c.UserID)
		}
	}
	if _, ok := store.d.projects[p.ID]; ok {
		t.Error("project should be deleted")
	}

	list, err := m.ListContributors(context.Background(), other.ID)
	if err != nil || len(list) != 2 {
		t.Errorf("other project contributors = %v, %v; expected 2", list, err)
	}

	set, err := NewResolver(store).AccessibleProjects(context.Background(), userB)
	if err != nil {
		t.Fatalf("AccessibleProjects() error = %v", err)
	}
	if set.Has(p.ID) {
		t.Error("deleted project still reachable")
	}
}

func TestDeleteProject_NotFound(t *testing.T) {
	m, _ := newManager(t)

	if _, err := m.DeleteProject(context.Background(), 999); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestDeleteProject_RollsBackOnFailure(t *testing.T) {
	m, store := newManager(t)
	p := createProject(t, m, userA)
	addContributor(t, m, p.ID, userB, models.RoleRead)

	failing := &failOnDeleteProject{memStore: store}
	_, err := NewManager(failing).DeleteProject(context.Background(), p.ID)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	list, err := m.ListContributors(context.Background(), p.ID)
	if err != nil || len(list) != 2 {
		t.Errorf("contributors after failed delete = %v, %v; expected 2", list, err)
	}
}

// failOnDeleteProject fails the final project delete so the contributor
// delete that preceded it must roll back.
type failOnDeleteProject struct {
	*memStore
}

func (s *failOnDeleteProject) DeleteProject(context.Context, uint) error {
	return errors.New("disk full")
}

func (s *failOnDeleteProject) InProjectTx(ctx context.Context, projectID uint, fn func(tx Store) error) error {
	return s.memStore.InProjectTx(ctx, projectID, func(tx Store) error {
		return fn(&failOnDeleteProject{memStore: tx.(*memStore)})
	})
}
