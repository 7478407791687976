package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Returns ErrAlreadyExists if the ExternalID is taken.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByExternalID retrieves a driver by chat identity.
	GetByExternalID(ctx context.Context, externalID int64) (*domain.Driver, error)

	// ListByApproval returns drivers with the given approval flag ordered by registration.
	ListByApproval(ctx context.Context, approved bool) ([]*domain.Driver, error)

	// ListAssignable returns approved drivers in an assignable duty status,
	// ordered by registration time and then ID.
	ListAssignable(ctx context.Context) ([]*domain.Driver, error)

	// SetApproved sets the approval flag.
	SetApproved(ctx context.Context, id string, approved bool) error

	// Delete removes a driver.
	Delete(ctx context.Context, id string) error

	// UpdateDutyStatus sets the duty status if the current one is in from.
	// An empty from matches any status. Reports whether a row changed.
	UpdateDutyStatus(ctx context.Context, id string, from []domain.DutyStatus, to domain.DutyStatus) (bool, error)

	// ResetDutyStatus moves every driver in status from to status to and returns them.
	ResetDutyStatus(ctx context.Context, from, to domain.DutyStatus) ([]*domain.Driver, error)

	// CountApproved returns the number of approved drivers.
	CountApproved(ctx context.Context) (int, error)
}
