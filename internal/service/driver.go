package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverService tracks driver registration, approval and availability.
type DriverService struct {
	store    repository.Store
	locks    *LockManager
	notifier *NotificationService
	logger   *slog.Logger
	now      func() time.Time
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	store repository.Store,
	locks *LockManager,
	notifier *NotificationService,
	logger *slog.Logger,
) *DriverService {
	return &DriverService{
		store:    store,
		locks:    locks,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateRegistration checks that a draft carries every field and all four photos.
func ValidateRegistration(draft *domain.RegistrationDraft) error {
	if draft == nil {
		return ErrIncompleteRegistration
	}
	for _, field := range []string{draft.Name, draft.LicenseNumber, draft.VehicleRegistration, draft.PlateNumber} {
		if strings.TrimSpace(field) == "" {
			return ErrIncompleteRegistration
		}
	}
	if _, missing := draft.NextPhotoPosition(); missing {
		return ErrIncompleteRegistration
	}
	return nil
}

// Register creates an unapproved, off-duty driver and sends the registration to dispatchers.
func (s *DriverService) Register(ctx context.Context, externalID int64, draft *domain.RegistrationDraft) (*domain.Driver, error) {
	if externalID <= 0 {
		return nil, ErrInvalidActorID
	}
	if err := ValidateRegistration(draft); err != nil {
		return nil, err
	}

	driver := &domain.Driver{
		ID:                  uuid.New().String(),
		ExternalID:          externalID,
		Name:                strings.TrimSpace(draft.Name),
		LicenseNumber:       strings.TrimSpace(draft.LicenseNumber),
		VehicleRegistration: strings.TrimSpace(draft.VehicleRegistration),
		PlateNumber:         strings.TrimSpace(draft.PlateNumber),
		Photos:              orderedPhotos(draft.Photos),
		DutyStatus:          domain.DutyStatusOffDuty,
		CreatedAt:           s.now(),
	}
	if err := s.store.Drivers().Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver registered",
		slog.String("driver_id", driver.ID),
		slog.Int64("external_id", externalID),
	)
	s.notifier.NotifyDriverRegistered(ctx, driver)
	return driver, nil
}

// orderedPhotos keeps one photo per position in collection order.
func orderedPhotos(photos []domain.Photo) []domain.Photo {
	out := make([]domain.Photo, 0, len(domain.PhotoPositions))
	for _, pos := range domain.PhotoPositions {
		for i := len(photos) - 1; i >= 0; i-- {
			if photos[i].Position == pos {
				out = append(out, photos[i])
				break
			}
		}
	}
	return out
}

// Approve lets a registered driver receive orders.
func (s *DriverService) Approve(ctx context.Context, adminID int64, driverID string) (*domain.Driver, error) {
	unlock, err := s.locks.Acquire(ctx, driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	drivers := s.store.Drivers()
	if err := drivers.SetApproved(ctx, driverID, true); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	driver, err := drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}

	s.logger.InfoContext(ctx, "driver approved", slog.String("driver_id", driverID), adminActor(adminID))
	s.notifier.NotifyDriverApproved(ctx, driver)
	return driver, nil
}

// Reject deletes a driver registration. A driver with orders in progress cannot be removed.
func (s *DriverService) Reject(ctx context.Context, adminID int64, driverID string) (*domain.Driver, error) {
	unlock, err := s.locks.Acquire(ctx, driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	driver, err := s.store.Drivers().GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	busy, err := s.store.Orders().CountInProgressByDriver(ctx, driverID, "")
	if err != nil {
		return nil, err
	}
	if busy > 0 {
		return nil, ErrDriverBusy
	}
	if err := s.store.Drivers().Delete(ctx, driverID); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}

	s.logger.InfoContext(ctx, "driver rejected", slog.String("driver_id", driverID), adminActor(adminID))
	s.notifier.NotifyDriverRejected(ctx, driver)
	return driver, nil
}

// SetDutyStatus is the driver's self-service switch between ON_DUTY and OFF_DUTY.
// It does not look at orders in progress.
func (s *DriverService) SetDutyStatus(ctx context.Context, driverID string, status domain.DutyStatus) (*domain.Driver, error) {
	if !status.SelfService() {
		return nil, ErrInvalidDutyStatus
	}

	unlock, err := s.locks.Acquire(ctx, driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	drivers := s.store.Drivers()
	driver, err := drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	if !driver.Approved {
		return nil, ErrDriverNotApproved
	}

	previous := driver.DutyStatus
	if _, err := drivers.UpdateDutyStatus(ctx, driverID, nil, status); err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	driver.DutyStatus = status

	s.logger.InfoContext(ctx, "duty status changed",
		slog.String("driver_id", driverID),
		slog.String("from", string(previous)),
		slog.String("to", string(status)),
	)
	s.notifier.NotifyDutyStatusChanged(ctx, driver, previous)
	return driver, nil
}

// GetByExternalID resolves a driver from a chat identity.
func (s *DriverService) GetByExternalID(ctx context.Context, externalID int64) (*domain.Driver, error) {
	driver, err := s.store.Drivers().GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound(err, ErrDriverNotFound)
	}
	return driver, nil
}

// ListAssignable returns drivers that can take an order, each with its number of orders in progress.
func (s *DriverService) ListAssignable(ctx context.Context) ([]domain.DriverSummary, error) {
	drivers, err := s.store.Drivers().ListAssignable(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DriverSummary, 0, len(drivers))
	for _, d := range drivers {
		active, err := s.store.Orders().CountInProgressByDriver(ctx, d.ID, "")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.DriverSummary{Driver: d, ActiveOrders: active})
	}
	return out, nil
}

// DriverOverview splits drivers into pending and approved registrations.
type DriverOverview struct {
	Pending  []domain.DriverSummary
	Approved []domain.DriverSummary
}

// Overview returns every driver with rating and earnings figures.
func (s *DriverService) Overview(ctx context.Context) (*DriverOverview, error) {
	var overview DriverOverview
	for _, approved := range []bool{false, true} {
		drivers, err := s.store.Drivers().ListByApproval(ctx, approved)
		if err != nil {
			return nil, err
		}
		for _, d := range drivers {
			summary, err := s.summarize(ctx, d)
			if err != nil {
				return nil, err
			}
			if approved {
				overview.Approved = append(overview.Approved, summary)
			} else {
				overview.Pending = append(overview.Pending, summary)
			}
		}
	}
	return &overview, nil
}

func (s *DriverService) summarize(ctx context.Context, d *domain.Driver) (domain.DriverSummary, error) {
	summary := domain.DriverSummary{Driver: d}
	var err error
	if summary.ActiveOrders, err = s.store.Orders().CountInProgressByDriver(ctx, d.ID, ""); err != nil {
		return summary, err
	}
	if summary.AverageRating, summary.RatingCount, err = s.store.Reviews().RatingByDriver(ctx, d.ID); err != nil {
		return summary, err
	}
	summary.TotalEarnings, err = s.store.Earnings().SumByDriver(ctx, d.ID, time.Time{})
	return summary, err
}

// Earnings sums a driver's earnings for today, the current month and all time.
func (s *DriverService) Earnings(ctx context.Context, driverID string) (*domain.EarningsSummary, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	earnings := s.store.Earnings()
	var (
		summary domain.EarningsSummary
		err     error
	)
	if summary.Today, err = earnings.SumByDriver(ctx, driverID, dayStart); err != nil {
		return nil, err
	}
	if summary.Month, err = earnings.SumByDriver(ctx, driverID, monthStart); err != nil {
		return nil, err
	}
	if summary.Total, err = earnings.SumByDriver(ctx, driverID, time.Time{}); err != nil {
		return nil, err
	}
	return &summary, nil
}
