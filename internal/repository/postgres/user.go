package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

const userColumns = `id, external_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''), created_at`

// Upsert inserts a user or refreshes the profile fields of an existing one.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.New().String()
	}
	query := `
		INSERT INTO users (id, external_id, username, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = COALESCE(EXCLUDED.phone, users.phone)
		RETURNING ` + userColumns

	return scanUser(r.q.QueryRowContext(ctx, query,
		id,
		user.ExternalID,
		nullString(user.Username),
		nullString(user.FirstName),
		nullString(user.LastName),
		nullString(user.Phone),
	))
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByExternalID retrieves a user by chat identity.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

// UpdatePhone sets the contact phone.
func (r *UserRepository) UpdatePhone(ctx context.Context, id, phone string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	res, err := r.q.ExecContext(ctx, `UPDATE users SET phone = $1 WHERE id = $2`, phone, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.ExternalID, &user.Username, &user.FirstName, &user.LastName, &user.Phone, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
