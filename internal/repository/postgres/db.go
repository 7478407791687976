package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Storage)(nil)
)

// Storage is the repository facade backed by PostgreSQL.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStorage wraps db and makes sure the schema exists.
func NewStorage(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Storage, error) {
	s := &Storage{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Users() repository.UserRepository       { return NewUserRepository(s.db) }
func (s *Storage) Drivers() repository.DriverRepository   { return NewDriverRepository(s.db) }
func (s *Storage) Orders() repository.OrderRepository     { return NewOrderRepository(s.db) }
func (s *Storage) Reviews() repository.ReviewRepository   { return NewReviewRepository(s.db) }
func (s *Storage) Earnings() repository.EarningRepository { return NewEarningRepository(s.db) }
func (s *Storage) Admins() repository.AdminRepository     { return NewAdminRepository(s.db) }

// WithinTransaction executes fn inside a transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, txRepositories{q: tx})
	return err
}

type txRepositories struct {
	q Querier
}

func (t txRepositories) Users() repository.UserRepository       { return &UserRepository{q: t.q} }
func (t txRepositories) Drivers() repository.DriverRepository   { return &DriverRepository{q: t.q} }
func (t txRepositories) Orders() repository.OrderRepository     { return &OrderRepository{q: t.q} }
func (t txRepositories) Reviews() repository.ReviewRepository   { return &ReviewRepository{q: t.q} }
func (t txRepositories) Earnings() repository.EarningRepository { return &EarningRepository{q: t.q} }
func (t txRepositories) Admins() repository.AdminRepository     { return &AdminRepository{q: t.q} }

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			external_id BIGINT UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			phone TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id UUID PRIMARY KEY,
			external_id BIGINT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			license_number TEXT NOT NULL,
			vehicle_registration TEXT NOT NULL,
			plate_number TEXT NOT NULL,
			photos JSONB NOT NULL DEFAULT '[]',
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			duty_status TEXT NOT NULL DEFAULT 'OFF_DUTY',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL REFERENCES users(id),
			client_seq INTEGER NOT NULL,
			driver_id UUID,
			from_address TEXT NOT NULL,
			to_address TEXT NOT NULL,
			comment TEXT,
			scheduled_at TIMESTAMPTZ,
			payment_method TEXT,
			price DOUBLE PRECISION,
			counter_offer DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'NEW',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			order_id UUID UNIQUE NOT NULL REFERENCES orders(id),
			client_id UUID NOT NULL,
			driver_id UUID NOT NULL,
			rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS earnings (
			id UUID PRIMARY KEY,
			driver_id UUID NOT NULL,
			order_id UUID UNIQUE NOT NULL REFERENCES orders(id),
			amount DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			external_id BIGINT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_driver ON orders(driver_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_earnings_driver ON earnings(driver_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// validID reports whether id can be cast to the UUID key columns.
// A malformed id can never match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
