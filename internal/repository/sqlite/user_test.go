package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
)

// newTestDB opens an in-memory database. Each test gets its own — the
// databases vanish on close, so there is no cross-test state.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_AssignsIDAndDefaults(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{Email: "a@example.com", PasswordHash: "$2a$fakehash"}
	if err := db.Create(context.Background(), u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if u.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if u.Plan != model.PlanFree {
		t.Errorf("Plan = %q, want default %q", u.Plan, model.PlanFree)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
}

func TestCreate_DuplicateEmailIsConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{Email: "dup@example.com", PasswordHash: "h1"}
	if err := db.Create(ctx, first); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	second := &model.User{Email: "dup@example.com", PasswordHash: "h2"}
	err := db.Create(ctx, second)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Create() error = %v, want ErrConflict", err)
	}

	// The original row is untouched
	got, err := db.GetByEmail(ctx, "dup@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != first.ID || got.PasswordHash != "h1" {
		t.Errorf("stored user = %+v, want the first insert to survive", got)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetByEmail_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Email: "rt@example.com", PasswordHash: "hash", Plan: model.PlanPremium}
	if err := db.Create(ctx, u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetByEmail(ctx, "rt@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "hash")
	}
	if got.Plan != model.PlanPremium {
		t.Errorf("Plan = %q, want %q", got.Plan, model.PlanPremium)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE PLAN TESTS
// =========================================================================

func TestUpdatePlan_Persists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := &model.User{Email: "plan@example.com", PasswordHash: "h"}
	if err := db.Create(ctx, u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := db.UpdatePlan(ctx, u.ID, model.PlanPremium); err != nil {
		t.Fatalf("UpdatePlan() error = %v", err)
	}

	got, err := db.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Plan != model.PlanPremium {
		t.Errorf("Plan = %q, want %q after update", got.Plan, model.PlanPremium)
	}
}

func TestUpdatePlan_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdatePlan(context.Background(), "no-such-id", model.PlanPremium)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePlan() error = %v, want ErrNotFound", err)
	}
}
