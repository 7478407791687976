package repository

import (
	"context"

	"dispatch/internal/domain"
)

// UserRepository defines the persistence operations for chat clients.
type UserRepository interface {
	// Upsert inserts the user or refreshes the profile of the user with the same ExternalID.
	// The stored user is returned with its ID and CreatedAt populated.
	Upsert(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByExternalID retrieves a user by chat identity.
	GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error)

	// UpdatePhone sets the contact phone of a user.
	UpdatePhone(ctx context.Context, id, phone string) error

	// Count returns the number of known users.
	Count(ctx context.Context) (int, error)
}
