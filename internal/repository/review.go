package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// ReviewRepository defines the persistence operations for reviews.
type ReviewRepository interface {
	// Create persists a review. Returns ErrAlreadyExists if the order was already reviewed.
	Create(ctx context.Context, review *domain.Review) error

	// GetByOrderID retrieves the review of an order.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Review, error)

	// UpdateComment sets the comment of an order's review.
	UpdateComment(ctx context.Context, orderID, comment string) error

	// RatingByDriver returns the average rating and the number of reviews of a driver.
	RatingByDriver(ctx context.Context, driverID string) (float64, int, error)
}

// EarningRepository defines the persistence operations for driver earnings.
type EarningRepository interface {
	// Create persists an earning. Returns ErrAlreadyExists if the order already has one.
	Create(ctx context.Context, earning *domain.Earning) error

	// GetByOrderID retrieves the earning of an order.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Earning, error)

	// SumByDriver sums a driver's earnings created at or after since.
	// A zero since sums everything.
	SumByDriver(ctx context.Context, driverID string, since time.Time) (float64, error)
}

// AdminRepository persists administrators added at runtime.
type AdminRepository interface {
	// Add registers an administrator. Adding an existing one is a no-op.
	Add(ctx context.Context, externalID int64) error

	// List returns every persisted administrator.
	List(ctx context.Context) ([]int64, error)
}
