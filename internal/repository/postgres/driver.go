package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

const driverColumns = `id, external_id, name, license_number, vehicle_registration, plate_number, photos, approved, duty_status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.New().String()
	}
	photos, err := json.Marshal(driver.Photos)
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}
	query := `
		INSERT INTO drivers (id, external_id, name, license_number, vehicle_registration, plate_number, photos, approved, duty_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	err = r.q.QueryRowContext(ctx, query,
		driver.ID,
		driver.ExternalID,
		driver.Name,
		driver.LicenseNumber,
		driver.VehicleRegistration,
		driver.PlateNumber,
		photos,
		driver.Approved,
		driver.DutyStatus,
	).Scan(&driver.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByExternalID retrieves a driver by chat identity.
func (r *DriverRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE external_id = $1`, externalID)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return driver, err
}

// ListByApproval returns drivers with the given approval flag.
func (r *DriverRepository) ListByApproval(ctx context.Context, approved bool) ([]*domain.Driver, error) {
	return r.list(ctx, `SELECT `+driverColumns+` FROM drivers WHERE approved = $1 ORDER BY created_at, id`, approved)
}

// ListAssignable returns approved drivers that can take an order.
func (r *DriverRepository) ListAssignable(ctx context.Context) ([]*domain.Driver, error) {
	return r.list(ctx, `
		SELECT `+driverColumns+` FROM drivers
		WHERE approved AND duty_status = ANY($1)
		ORDER BY created_at, id`,
		pq.Array(dutyStrings(domain.AssignableDutyStatuses)),
	)
}

func (r *DriverRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// SetApproved sets the approval flag.
func (r *DriverRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	res, err := r.q.ExecContext(ctx, `UPDATE drivers SET approved = $1 WHERE id = $2`, approved, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a driver.
func (r *DriverRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM drivers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// UpdateDutyStatus sets the duty status while the current one is in from.
func (r *DriverRepository) UpdateDutyStatus(ctx context.Context, id string, from []domain.DutyStatus, to domain.DutyStatus) (bool, error) {
	if !validID(id) {
		return false, repository.ErrNotFound
	}
	query := `
		UPDATE drivers SET duty_status = $1
		WHERE id = $2 AND (cardinality($3::text[]) = 0 OR duty_status = ANY($3))`

	res, err := r.q.ExecContext(ctx, query, to, id, pq.Array(dutyStrings(from)))
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

	// Tell a missing driver apart from a failed precondition.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ResetDutyStatus moves every driver in from to to.
func (r *DriverRepository) ResetDutyStatus(ctx context.Context, from, to domain.DutyStatus) ([]*domain.Driver, error) {
	return r.list(ctx, `
		UPDATE drivers SET duty_status = $1
		WHERE duty_status = $2
		RETURNING `+driverColumns, to, from)
}

// CountApproved returns the number of approved drivers.
func (r *DriverRepository) CountApproved(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM drivers WHERE approved`).Scan(&n)
	return n, err
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var (
		driver domain.Driver
		photos []byte
	)
	err := row.Scan(
		&driver.ID,
		&driver.ExternalID,
		&driver.Name,
		&driver.LicenseNumber,
		&driver.VehicleRegistration,
		&driver.PlateNumber,
		&photos,
		&driver.Approved,
		&driver.DutyStatus,
		&driver.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &driver.Photos); err != nil {
			return nil, fmt.Errorf("decode photos: %w", err)
		}
	}
	return &driver, nil
}

func dutyStrings(statuses []domain.DutyStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
