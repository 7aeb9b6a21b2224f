package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []uint
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userIDs ...uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userIDs...)
	return nil
}

func (r *recordingInvalidator) has(userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.users {
		if id == userID {
			return true
		}
	}
	return false
}

type recordingQueue struct {
	mu     sync.Mutex
	events []*MembershipEvent
}

func (q *recordingQueue) Enqueue(_ context.Context, event *MembershipEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) types() []EventType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]EventType, 0, len(q.events))
	for _, e := range q.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db           *gorm.DB
	invalidator  *recordingInvalidator
	queue        *recordingQueue
	projects     *ProjectService
	contributors *ContributorService
	tasks        *TaskService
	dashboard    *DashboardService
	users        *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	st := store.New(db)
	manager := membership.NewManager(st)
	resolver := membership.NewResolver(st)
	evaluator := membership.NewEvaluator(st)
	inv := &recordingInvalidator{}
	queue := &recordingQueue{}

	return &testEnv{
		db:           db,
		invalidator:  inv,
		queue:        queue,
		projects:     NewProjectService(db, manager, resolver, inv, queue),
		contributors: NewContributorService(db, manager, evaluator, inv, queue),
		tasks:        NewTaskService(db, evaluator),
		dashboard:    NewDashboardService(db, resolver),
		users:        NewUserService(db),
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), &CreateUserRequest{Username: username, Password: "secret123"})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) createProject(t *testing.T, name string, ownerID uint) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), &CreateProjectRequest{Name: name}, ownerID)
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func (e *testEnv) addContributor(t *testing.T, projectID, actorID, userID uint, role models.Role) *models.Contributor {
	t.Helper()
	c, err := e.contributors.Add(context.Background(), projectID, actorID, &AddContributorRequest{UserID: userID, Role: string(role)})
	if err != nil {
		t.Fatalf("add contributor %d as %s: %v", userID, role, err)
	}
	return c
}
