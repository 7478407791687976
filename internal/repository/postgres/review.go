package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ReviewRepository is a PostgreSQL implementation of repository.ReviewRepository.
type ReviewRepository struct {
	q Querier
}

// NewReviewRepository creates a new PostgreSQL review repository.
func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{q: db}
}

// Create persists a review; the order_id unique key enforces one review per order.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	query := `
		INSERT INTO reviews (id, order_id, client_id, driver_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		review.ID, review.OrderID, review.ClientID, review.DriverID, review.Rating, nullString(review.Comment),
	).Scan(&review.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	return err
}

// GetByOrderID retrieves the review of an order.
func (r *ReviewRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Review, error) {
	if !validID(orderID) {
		return nil, repository.ErrNotFound
	}
	var review domain.Review
	err := r.q.QueryRowContext(ctx, `
		SELECT id, order_id, client_id, driver_id, rating, COALESCE(comment, ''), created_at
		FROM reviews WHERE order_id = $1`, orderID,
	).Scan(&review.ID, &review.OrderID, &review.ClientID, &review.DriverID, &review.Rating, &review.Comment, &review.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// UpdateComment sets the comment of an order's review.
func (r *ReviewRepository) UpdateComment(ctx context.Context, orderID, comment string) error {
	if !validID(orderID) {
		return repository.ErrNotFound
	}
	res, err := r.q.ExecContext(ctx, `UPDATE reviews SET comment = $1 WHERE order_id = $2`, nullString(comment), orderID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// RatingByDriver returns the average rating and review count of a driver.
func (r *ReviewRepository) RatingByDriver(ctx context.Context, driverID string) (float64, int, error) {
	if !validID(driverID) {
		return 0, 0, nil
	}
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.q.QueryRowContext(ctx, `SELECT AVG(rating), COUNT(*) FROM reviews WHERE driver_id = $1`, driverID).Scan(&avg, &count)
	return avg.Float64, count, err
}

// EarningRepository is a PostgreSQL implementation of repository.EarningRepository.
type EarningRepository struct {
	q Querier
}

// NewEarningRepository creates a new PostgreSQL earning repository.
func NewEarningRepository(db *sql.DB) *EarningRepository {
	return &EarningRepository{q: db}
}

// Create persists an earning; the order_id unique key enforces one earning per order.
func (r *EarningRepository) Create(ctx context.Context, earning *domain.Earning) error {
	if earning.ID == "" {
		earning.ID = uuid.New().String()
	}
	createdAt := earning.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO earnings (id, driver_id, order_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		earning.ID, earning.DriverID, earning.OrderID, earning.Amount, createdAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	earning.CreatedAt = createdAt
	return nil
}

// GetByOrderID retrieves the earning of an order.
func (r *EarningRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Earning, error) {
	if !validID(orderID) {
		return nil, repository.ErrNotFound
	}
	var e domain.Earning
	err := r.q.QueryRowContext(ctx, `
		SELECT id, driver_id, order_id, amount, created_at FROM earnings WHERE order_id = $1`, orderID,
	).Scan(&e.ID, &e.DriverID, &e.OrderID, &e.Amount, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SumByDriver sums a driver's earnings since the given time.
func (r *EarningRepository) SumByDriver(ctx context.Context, driverID string, since time.Time) (float64, error) {
	if !validID(driverID) {
		return 0, nil
	}
	var sum float64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM earnings
		WHERE driver_id = $1 AND created_at >= $2`, driverID, since,
	).Scan(&sum)
	return sum, err
}

// AdminRepository is a PostgreSQL implementation of repository.AdminRepository.
type AdminRepository struct {
	q Querier
}

// NewAdminRepository creates a new PostgreSQL admin repository.
func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{q: db}
}

// Add registers an administrator.
func (r *AdminRepository) Add(ctx context.Context, externalID int64) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO admins (external_id) VALUES ($1) ON CONFLICT DO NOTHING`, externalID)
	return err
}

// List returns every persisted administrator.
func (r *AdminRepository) List(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT external_id FROM admins ORDER BY external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
