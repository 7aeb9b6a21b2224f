package services

import (
	"context"
	"errors"
	"testing"

	"github.com/huangang/projecthub/internal/models"
)

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.users.Create(ctx, &CreateUserRequest{Username: "alice", Password: "secret123", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Role != models.UserRoleUser {
		t.Errorf("Role = %q, expected default %q", u.Role, models.UserRoleUser)
	}
	if u.Password == "secret123" {
		t.Error("password must be stored hashed")
	}
	if !u.IsActive {
		t.Error("new users should be active")
	}

	if _, err := env.users.Create(ctx, &CreateUserRequest{Username: "alice", Password: "other123"}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate err = %v, expected ErrUsernameTaken", err)
	}
}

func TestUserService_ListAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	env.createUser(t, "alfred")
	env.createUser(t, "bob")

	resp, err := env.users.List(ctx, &UserListRequest{Username: "al"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, expected 2", resp.Total)
	}

	admin := models.UserRoleAdmin
	nick := "Al"
	updated, err := env.users.Update(ctx, alice.ID, &UpdateUserRequest{Role: &admin, Nickname: &nick})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Role != models.UserRoleAdmin || updated.Nickname != "Al" {
		t.Errorf("updated = %+v", updated)
	}

	resp, err = env.users.List(ctx, &UserListRequest{Role: models.UserRoleAdmin})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("admin count = %d, expected 1", resp.Total)
	}

	if _, err := env.users.Update(ctx, alice.ID+100, &UpdateUserRequest{Nickname: &nick}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v, expected ErrUserNotFound", err)
	}
}
