package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user.
//
// ATOMIC INSERT-IF-ABSENT:
// We do a single INSERT and let the UNIQUE constraint on email decide.
// A SELECT-then-INSERT would race: two concurrent signups with the same
// email could both pass the SELECT and both insert. With the constraint,
// SQLite serializes the writes and exactly one INSERT fails — which we
// translate into apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, plan, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		string(user.Plan),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByEmail retrieves a user by their login email.
// Returns apperror.ErrNotFound if no user has that email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, email, password_hash, plan, created_at, updated_at
		 FROM users WHERE email = ?`, email)
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT id, email, password_hash, plan, created_at, updated_at
		 FROM users WHERE id = ?`, id)
}

// UpdatePlan changes the user's plan tier.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) UpdatePlan(ctx context.Context, id string, plan model.Plan) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET plan = ?, updated_at = ? WHERE id = ?`,
		string(plan), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating plan for user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected for user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}

func (db *DB) getUser(ctx context.Context, query, key string) (*model.User, error) {
	var (
		u    model.User
		plan string
	)

	err := db.conn.QueryRowContext(ctx, query, key).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&plan,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	u.Plan = model.Plan(plan)
	return &u, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The pure-Go driver doesn't export a sentinel for this, so we
// match on the stable error text ("UNIQUE constraint failed: ...").
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
