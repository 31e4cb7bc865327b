package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	users := NewUserStore(pool)
	email := fmt.Sprintf("dupe.%d@example.local", time.Now().UnixNano())

	if _, err := users.Create(context.Background(), email, "hash", "First", "User", model.RoleUser); err != nil {
		t.Fatalf("create error: %v", err)
	}

	_, err := users.Create(context.Background(), email, "hash", "Second", "User", model.RoleUser)
	appErr, ok := apperr.From(err)
	if !ok || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	users := NewUserStore(pool)
	user := createTestUser(t, users)

	newFirst := "Changed"
	updated, err := users.Update(context.Background(), user.ID, UserUpdate{FirstName: &newFirst})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.FirstName != "Changed" {
		t.Fatalf("expected first name update, got %q", updated.FirstName)
	}
	if updated.Email != user.Email || updated.LastName != user.LastName || updated.Role != user.Role {
		t.Fatalf("untouched fields must survive a partial update")
	}

	inactive := false
	updated, err = users.Update(context.Background(), user.ID, UserUpdate{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("expected user to be deactivated")
	}
}

func TestDeleteUser(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	users := NewUserStore(pool)
	user := createTestUser(t, users)

	deleted, err := users.Delete(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report a removed row")
	}

	deleted, err = users.Delete(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if deleted {
		t.Fatalf("expected second delete to find nothing")
	}

	_, err = users.GetByID(context.Background(), user.ID)
	appErr, ok := apperr.From(err)
	if !ok || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
