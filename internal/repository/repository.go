package repository

import (
	"context"

	"github.com/sakif/ml-finops/internal/model"
)

// UserRepository is the credential store.
//
// Create must be atomic with the uniqueness check: two concurrent
// registrations of the same email must yield exactly one row and one
// conflict error. Implementations achieve this with a storage-level
// unique constraint, never a check-then-insert.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePlan(ctx context.Context, id string, plan model.Plan) error
}

// CostRepository serves the read-only cost series.
type CostRepository interface {
	ListSeries(ctx context.Context, series model.CostSeries) ([]model.CostSample, error)
}
