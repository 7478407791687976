package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// OrderChange describes the fields written by a guarded transition.
// Nil or zero fields are left untouched.
type OrderChange struct {
	Status       domain.OrderStatus
	Price        *float64
	CounterOffer *float64
	DriverID     string
	CompletedAt  time.Time
}

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// Transition applies change only while the order status is in from.
	// Reports whether the order was updated; false means the precondition no longer held.
	Transition(ctx context.Context, id string, from []domain.OrderStatus, change OrderChange) (bool, error)

	// CancelActive moves every non-terminal order to CANCELLED and returns the affected orders.
	CancelActive(ctx context.Context) ([]*domain.Order, error)

	// ListByStatus returns orders in the given statuses, newest first. A limit of 0 means no limit.
	ListByStatus(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error)

	// ListByClient returns a client's orders, newest first.
	ListByClient(ctx context.Context, clientID string, limit int) ([]*domain.Order, error)

	// ListByDriver returns a driver's orders, in-progress ones first and then newest first.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Order, error)

	// CountByClient returns how many orders the client has placed.
	CountByClient(ctx context.Context, clientID string) (int, error)

	// CountByStatus counts orders in the given statuses. No statuses counts every order.
	CountByStatus(ctx context.Context, statuses ...domain.OrderStatus) (int, error)

	// CountInProgressByDriver counts the driver's IN_PROGRESS orders other than excludeOrderID.
	CountInProgressByDriver(ctx context.Context, driverID, excludeOrderID string) (int, error)
}
