package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/projecthub/internal/models"
)

func TestTaskService_CreateDefaultsAndAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	outsider := env.createUser(t, "mallory")
	p := env.createProject(t, "apollo", alice.ID)
	env.addContributor(t, p.ID, alice.ID, bob.ID, models.RoleWrite)

	task, err := env.tasks.Create(ctx, p.ID, alice.ID, &CreateTaskRequest{Title: " fuel ", AssigneeID: &bob.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.TaskTodo {
		t.Errorf("Status = %q, expected TODO", task.Status)
	}
	if task.Title != "fuel" {
		t.Errorf("Title = %q, expected %q", task.Title, "fuel")
	}
	if task.CreatedBy != alice.ID {
		t.Errorf("CreatedBy = %d, expected %d", task.CreatedBy, alice.ID)
	}

	if _, err := env.tasks.Create(ctx, p.ID, alice.ID, &CreateTaskRequest{Title: "x", AssigneeID: &outsider.ID}); !errors.Is(err, ErrAssigneeNotContributor) {
		t.Errorf("assign outsider err = %v, expected ErrAssigneeNotContributor", err)
	}
	if _, err := env.tasks.Create(ctx, p.ID, alice.ID, &CreateTaskRequest{Title: "x", Status: "blocked"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bad status err = %v, expected ErrInvalidStatus", err)
	}
}

func TestTaskService_TasksAreScopedToProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	p1 := env.createProject(t, "apollo", alice.ID)
	p2 := env.createProject(t, "gemini", alice.ID)

	task, err := env.tasks.Create(ctx, p1.ID, alice.ID, &CreateTaskRequest{Title: "launch"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := env.tasks.Get(ctx, p2.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Get via other project err = %v, expected ErrTaskNotFound", err)
	}
	if err := env.tasks.Delete(ctx, p2.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Delete via other project err = %v, expected ErrTaskNotFound", err)
	}
	if _, err := env.tasks.Get(ctx, p1.ID, task.ID); err != nil {
		t.Errorf("task should survive, Get err = %v", err)
	}
}

func TestTaskService_UpdateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	p := env.createProject(t, "apollo", alice.ID)
	env.addContributor(t, p.ID, alice.ID, bob.ID, models.RoleWrite)

	first, _ := env.tasks.Create(ctx, p.ID, alice.ID, &CreateTaskRequest{Title: "design"})
	if _, err := env.tasks.Create(ctx, p.ID, alice.ID, &CreateTaskRequest{Title: "build"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := env.tasks.Update(ctx, p.ID, first.ID, &UpdateTaskRequest{Status: "in_progress", AssigneeID: &bob.ID})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != models.TaskInProgress {
		t.Errorf("Status = %q, expected IN_PROGRESS", updated.Status)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != bob.ID {
		t.Errorf("AssigneeID = %v, expected %d", updated.AssigneeID, bob.ID)
	}

	resp, err := env.tasks.List(ctx, p.ID, &TaskListRequest{Status: "IN_PROGRESS"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != first.ID {
		t.Errorf("List(IN_PROGRESS) = %+v", resp.Items)
	}

	resp, err = env.tasks.List(ctx, p.ID, &TaskListRequest{AssigneeID: bob.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("List(assignee) Total = %d, expected 1", resp.Total)
	}

	cleared, err := env.tasks.Update(ctx, p.ID, first.ID, &UpdateTaskRequest{Unassign: true})
	if err != nil {
		t.Fatalf("Update(unassign): %v", err)
	}
	if cleared.AssigneeID != nil {
		t.Errorf("AssigneeID = %v, expected nil", *cleared.AssigneeID)
	}

	resp, err = env.tasks.List(ctx, p.ID, &TaskListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 2 || resp.Page != 1 || resp.PageSize != 20 {
		t.Errorf("List defaults = total %d page %d size %d", resp.Total, resp.Page, resp.PageSize)
	}
}
