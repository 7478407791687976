package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

const orderColumns = `id, client_id, client_seq, COALESCE(driver_id::text, ''), from_address, to_address,
	COALESCE(comment, ''), scheduled_at, COALESCE(payment_method, ''), price, counter_offer, status, created_at, completed_at`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	var scheduledAt sql.NullTime
	if !order.ScheduledAt.IsZero() {
		scheduledAt = sql.NullTime{Time: order.ScheduledAt, Valid: true}
	}

	query := `
		INSERT INTO orders (id, client_id, client_seq, from_address, to_address, comment, scheduled_at, payment_method, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		order.ID,
		order.ClientID,
		order.ClientSeq,
		order.FromAddress,
		order.ToAddress,
		nullString(order.Comment),
		scheduledAt,
		nullString(string(order.PaymentMethod)),
		nullFloat(order.Price),
		order.Status,
	).Scan(&order.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	order, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return order, err
}

// Transition applies change while the status is still in from.
func (r *OrderRepository) Transition(ctx context.Context, id string, from []domain.OrderStatus, change repository.OrderChange) (bool, error) {
	if !validID(id) {
		return false, repository.ErrNotFound
	}
	var completedAt sql.NullTime
	if !change.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: change.CompletedAt, Valid: true}
	}
	var driverID sql.NullString
	if change.DriverID != "" {
		driverID = sql.NullString{String: change.DriverID, Valid: true}
	}

	query := `
		UPDATE orders SET
			status = COALESCE(NULLIF($1, ''), status),
			price = COALESCE($2, price),
			counter_offer = COALESCE($3, counter_offer),
			driver_id = COALESCE($4::uuid, driver_id),
			completed_at = COALESCE($5, completed_at)
		WHERE id = $6 AND status = ANY($7)`

	res, err := r.q.ExecContext(ctx, query,
		string(change.Status),
		nullFloat(change.Price),
		nullFloat(change.CounterOffer),
		driverID,
		completedAt,
		id,
		pq.Array(statusStrings(from)),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CancelActive cancels every non-terminal order.
func (r *OrderRepository) CancelActive(ctx context.Context) ([]*domain.Order, error) {
	return r.list(ctx, `
		UPDATE orders SET status = $1
		WHERE status = ANY($2)
		RETURNING `+orderColumns,
		domain.OrderStatusCancelled,
		pq.Array(statusStrings(domain.ActiveOrderStatuses)),
	)
}

// ListByStatus returns orders in the given statuses, newest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)`,
		pq.Array(statusStrings(statuses)), limit,
	)
}

// ListByClient returns a client's orders, newest first.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]*domain.Order, error) {
	if !validID(clientID) {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)`,
		clientID, limit,
	)
}

// ListByDriver returns a driver's orders with in-progress ones first.
func (r *OrderRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Order, error) {
	if !validID(driverID) {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE driver_id = $1
		ORDER BY (status = $2) DESC, created_at DESC, id DESC
		LIMIT NULLIF($3, 0)`,
		driverID, domain.OrderStatusInProgress, limit,
	)
}

// CountByClient returns how many orders the client has placed.
func (r *OrderRepository) CountByClient(ctx context.Context, clientID string) (int, error) {
	if !validID(clientID) {
		return 0, nil
	}
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE client_id = $1`, clientID).Scan(&n)
	return n, err
}

// CountByStatus counts orders in the given statuses.
func (r *OrderRepository) CountByStatus(ctx context.Context, statuses ...domain.OrderStatus) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)`,
		pq.Array(statusStrings(statuses)),
	).Scan(&n)
	return n, err
}

// CountInProgressByDriver counts the driver's other IN_PROGRESS orders.
func (r *OrderRepository) CountInProgressByDriver(ctx context.Context, driverID, excludeOrderID string) (int, error) {
	if !validID(driverID) {
		return 0, nil
	}
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE driver_id = $1 AND status = $2 AND id::text <> $3`,
		driverID, domain.OrderStatusInProgress, excludeOrderID,
	).Scan(&n)
	return n, err
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order        domain.Order
		scheduledAt  sql.NullTime
		completedAt  sql.NullTime
		price        sql.NullFloat64
		counterOffer sql.NullFloat64
	)
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.ClientSeq,
		&order.DriverID,
		&order.FromAddress,
		&order.ToAddress,
		&order.Comment,
		&scheduledAt,
		&order.PaymentMethod,
		&price,
		&counterOffer,
		&order.Status,
		&order.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		order.ScheduledAt = scheduledAt.Time
	}
	if completedAt.Valid {
		order.CompletedAt = completedAt.Time
	}
	if price.Valid {
		order.Price = &price.Float64
	}
	if counterOffer.Valid {
		order.CounterOffer = &counterOffer.Float64
	}
	return &order, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
