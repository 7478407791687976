package repository

import (
	"context"

	"dispatch/internal/domain"
)

// Repositories is a factory for the per-entity repositories.
type Repositories interface {
	Users() UserRepository
	Drivers() DriverRepository
	Orders() OrderRepository
	Reviews() ReviewRepository
	Earnings() EarningRepository
	Admins() AdminRepository
}

// Store is the storage facade. WithinTransaction runs fn against repositories
// bound to one transaction, committing when fn returns nil.
type Store interface {
	Repositories
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

// SessionStore keeps transient per-actor conversation state.
// Get returns ErrNotFound for a missing or expired session.
type SessionStore interface {
	Get(ctx context.Context, actorID int64) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, actorID int64) error
}
