package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const (
	clientOrdersLimit = 5
	driverOrdersLimit = 10
	historyLimit      = 10
)

// OrderService drives orders through their lifecycle.
// Every mutation takes the order lock (and then the driver lock where a
// driver is involved) and writes through a status-guarded update.
type OrderService struct {
	store     repository.Store
	locks     *LockManager
	validator AddressValidator
	notifier  *NotificationService
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	store repository.Store,
	locks *LockManager,
	validator AddressValidator,
	notifier *NotificationService,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		store:     store,
		locks:     locks,
		validator: validator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	ClientID      string
	FromAddress   string
	ToAddress     string
	Comment       string
	ScheduledAt   time.Time
	PaymentMethod domain.PaymentMethod
}

// ValidateCreateOrder checks the request without touching storage.
func (s *OrderService) ValidateCreateOrder(req CreateOrderRequest) error {
	if strings.TrimSpace(req.FromAddress) == "" || strings.TrimSpace(req.ToAddress) == "" {
		return ErrEmptyAddress
	}
	if err := s.validator.ValidateAddress(req.FromAddress); err != nil {
		return err
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if !req.ScheduledAt.IsZero() && !req.ScheduledAt.After(s.now()) {
		return ErrInvalidSchedule
	}
	return nil
}

// CreateOrder places a new order in NEW and asks dispatchers for a price.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := s.ValidateCreateOrder(req); err != nil {
		return nil, err
	}

	client, err := s.store.Users().GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	// The client lock keeps per-client numbering gap-free.
	unlock, err := s.locks.Acquire(ctx, clientLockKey(client.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	count, err := s.store.Orders().CountByClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.New().String(),
		ClientID:      client.ID,
		ClientSeq:     count + 1,
		FromAddress:   strings.TrimSpace(req.FromAddress),
		ToAddress:     strings.TrimSpace(req.ToAddress),
		Comment:       strings.TrimSpace(req.Comment),
		ScheduledAt:   req.ScheduledAt,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.OrderStatusNew,
		CreatedAt:     s.now(),
	}
	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("client_id", client.ID),
		slog.Int("client_seq", order.ClientSeq),
	)
	s.notifier.NotifyOrderCreated(ctx, order, client)
	return order, nil
}

// ParsePrice parses a price typed by a person. A comma is accepted as decimal separator.
func ParsePrice(text string) (float64, error) {
	value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if err := validatePrice(value); err != nil {
		return 0, err
	}
	return value, nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// SetPrice offers a price to the client. Re-offering while PRICE_OFFERED replaces the price.
func (s *OrderService) SetPrice(ctx context.Context, adminID int64, orderID string, price float64) (*domain.Order, error) {
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	order, err := s.transition(ctx, adminActor(adminID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if !domain.CanTransition(o.Status, domain.OrderStatusPriceOffered) {
			return nil, repository.OrderChange{}, ErrInvalidOrderState
		}
		return []domain.OrderStatus{domain.OrderStatusNew, domain.OrderStatusPriceOffered},
			repository.OrderChange{Status: domain.OrderStatusPriceOffered, Price: &price}, nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPriceOffered(ctx, order)
	return order, nil
}

// AcceptPrice accepts the offered price on behalf of the order's client.
func (s *OrderService) AcceptPrice(ctx context.Context, clientID, orderID string) (*domain.Order, error) {
	order, err := s.transition(ctx, clientActor(clientID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireOwner(o, clientID); err != nil {
			return nil, repository.OrderChange{}, err
		}
		return requireStatus(o, domain.OrderStatusPriceOffered, repository.OrderChange{Status: domain.OrderStatusAccepted})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPriceAccepted(ctx, order)
	return order, nil
}

// DeclinePrice declines the offered price. DECLINED is final.
func (s *OrderService) DeclinePrice(ctx context.Context, clientID, orderID string) (*domain.Order, error) {
	order, err := s.transition(ctx, clientActor(clientID), orderID, func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error) {
		if err := requireOwner(o, clientID); err != nil {
			return nil, repository.OrderChange{}, err
		}
		return requireStatus(o, domain.OrderStatusPriceOffered, repository.OrderChange{Status: domain.OrderStatusDeclined})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPriceDeclined(ctx, order)
	return order, nil
}

// AssignmentResult is the outcome of a driver assignment.
type AssignmentResult struct {
	Order  *domain.Order
	Driver *domain.Driver
}

// AssignDriver hands an ACCEPTED order to an approved, available driver.
// A driver may hold several orders at once; an ON_ORDER driver stays ON_ORDER.
func (s *OrderService) AssignDriver(ctx context.Context, adminID int64, orderID, driverID string) (*AssignmentResult, error) {
	unlock, err := s.locks.Acquire(ctx, orderLockKey(orderID), driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result AssignmentResult
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Status != domain.OrderStatusAccepted {
			return ErrInvalidOrderState
		}

		driver, err := tx.Drivers().GetByID(ctx, driverID)
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}
		if !driver.Approved {
			return ErrDriverNotApproved
		}
		if !driver.Assignable() {
			return ErrDriverNotAssignable
		}

		ok, err := tx.Orders().Transition(ctx, orderID,
			[]domain.OrderStatus{domain.OrderStatusAccepted},
			repository.OrderChange{Status: domain.OrderStatusInProgress, DriverID: driverID},
		)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrderState
		}

		if driver.DutyStatus == domain.DutyStatusOnDuty {
			if _, err := tx.Drivers().UpdateDutyStatus(ctx, driverID,
				[]domain.DutyStatus{domain.DutyStatusOnDuty}, domain.DutyStatusOnOrder); err != nil {
				return err
			}
		}

		if result.Order, err = tx.Orders().GetByID(ctx, orderID); err != nil {
			return err
		}
		result.Driver, err = tx.Drivers().GetByID(ctx, driverID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, adminActor(adminID), result.Order, domain.OrderStatusAccepted,
		slog.String("driver_id", driverID), slog.String("duty_status", string(result.Driver.DutyStatus)))
	s.notifier.NotifyDriverAssigned(ctx, result.Order, result.Driver)
	return &result, nil
}

// DriverArrived records that the assigned driver reached the pickup point.
// The order stays IN_PROGRESS; the driver's duty status becomes ARRIVED.
func (s *OrderService) DriverArrived(ctx context.Context, driverID, orderID string) (*AssignmentResult, error) {
	unlock, err := s.locks.Acquire(ctx, orderLockKey(orderID), driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result AssignmentResult
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Status != domain.OrderStatusInProgress {
			return ErrInvalidOrderState
		}
		if order.DriverID != driverID {
			return ErrNotAssignedDriver
		}

		// An empty change only re-checks the status and holds the row until commit.
		ok, err := tx.Orders().Transition(ctx, orderID,
			[]domain.OrderStatus{domain.OrderStatusInProgress}, repository.OrderChange{})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrderState
		}

		if _, err := tx.Drivers().UpdateDutyStatus(ctx, driverID, nil, domain.DutyStatusArrived); err != nil {
			return notFound(err, ErrDriverNotFound)
		}

		result.Order = order
		result.Driver, err = tx.Drivers().GetByID(ctx, driverID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "driver arrived",
		slog.String("order_id", orderID),
		slog.String("driver_id", driverID),
	)
	s.notifier.NotifyDriverArrived(ctx, result.Order, result.Driver)
	return &result, nil
}

// CompletionResult is the outcome of completing an order.
type CompletionResult struct {
	Order   *domain.Order
	Driver  *domain.Driver
	Earning *domain.Earning
}

// CompleteOrder finishes an IN_PROGRESS order, books the driver's earning and
// frees the driver once no other order is in progress.
func (s *OrderService) CompleteOrder(ctx context.Context, driverID, orderID string) (*CompletionResult, error) {
	unlock, err := s.locks.Acquire(ctx, orderLockKey(orderID), driverLockKey(driverID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	var result CompletionResult
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Status != domain.OrderStatusInProgress {
			return ErrInvalidOrderState
		}
		if order.DriverID != driverID {
			return ErrNotAssignedDriver
		}

		ok, err := tx.Orders().Transition(ctx, orderID,
			[]domain.OrderStatus{domain.OrderStatusInProgress},
			repository.OrderChange{Status: domain.OrderStatusCompleted, CompletedAt: now},
		)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidOrderState
		}

		earning := &domain.Earning{
			ID:        uuid.New().String(),
			DriverID:  driverID,
			OrderID:   orderID,
			Amount:    order.PriceValue(),
			CreatedAt: now,
		}
		if err := tx.Earnings().Create(ctx, earning); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return fmt.Errorf("%w: earning already booked", ErrInvalidOrderState)
			}
			return err
		}
		result.Earning = earning

		remaining, err := tx.Orders().CountInProgressByDriver(ctx, driverID, orderID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			_, err = tx.Drivers().UpdateDutyStatus(ctx, driverID, nil, domain.DutyStatusOnDuty)
		} else {
			_, err = tx.Drivers().UpdateDutyStatus(ctx, driverID,
				[]domain.DutyStatus{domain.DutyStatusArrived}, domain.DutyStatusOnOrder)
		}
		if err != nil {
			return notFound(err, ErrDriverNotFound)
		}

		if result.Order, err = tx.Orders().GetByID(ctx, orderID); err != nil {
			return err
		}
		result.Driver, err = tx.Drivers().GetByID(ctx, driverID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logTransition(ctx, driverActor(driverID), result.Order, domain.OrderStatusInProgress,
		slog.Float64("amount", result.Earning.Amount), slog.String("duty_status", string(result.Driver.DutyStatus)))
	s.notifier.NotifyOrderCompleted(ctx, result.Order, result.Driver)
	return &result, nil
}

// BulkCancelResult reports what a bulk cancellation touched.
type BulkCancelResult struct {
	Orders          []*domain.Order
	ReleasedDrivers []*domain.Driver
}

// BulkCancel cancels every non-terminal order and puts every ON_ORDER driver back ON_DUTY.
// It relies on status-guarded updates rather than per-order locks, so an order
// completed concurrently is either completed or cancelled, never both.
func (s *OrderService) BulkCancel(ctx context.Context, adminID int64) (*BulkCancelResult, error) {
	var result BulkCancelResult
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		if result.Orders, err = tx.Orders().CancelActive(ctx); err != nil {
			return err
		}
		result.ReleasedDrivers, err = tx.Drivers().ResetDutyStatus(ctx, domain.DutyStatusOnOrder, domain.DutyStatusOnDuty)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "orders cleared",
		slog.Int64("actor_id", adminID),
		slog.Int("orders", len(result.Orders)),
		slog.Int("drivers", len(result.ReleasedDrivers)),
	)
	s.notifier.NotifyOrdersCancelled(ctx, result.Orders)
	return &result, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return order, nil
}

// ClientOrder is an order as shown to its client.
type ClientOrder struct {
	Order   *domain.Order
	CanRate bool
}

// ClientOrders returns the client's latest orders and whether each can still be rated.
func (s *OrderService) ClientOrders(ctx context.Context, clientID string) ([]ClientOrder, error) {
	orders, err := s.store.Orders().ListByClient(ctx, clientID, clientOrdersLimit)
	if err != nil {
		return nil, err
	}

	out := make([]ClientOrder, 0, len(orders))
	for _, o := range orders {
		view := ClientOrder{Order: o}
		if o.Status == domain.OrderStatusCompleted {
			_, err := s.store.Reviews().GetByOrderID(ctx, o.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				view.CanRate = true
			case err != nil:
				return nil, err
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// DriverOrders returns the driver's orders with in-progress ones first.
func (s *OrderService) DriverOrders(ctx context.Context, driverID string) ([]*domain.Order, error) {
	return s.store.Orders().ListByDriver(ctx, driverID, driverOrdersLimit)
}

// ActiveOrders returns every non-terminal order.
func (s *OrderService) ActiveOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.store.Orders().ListByStatus(ctx, domain.ActiveOrderStatuses, 0)
}

// History returns the latest completed or cancelled orders.
func (s *OrderService) History(ctx context.Context) ([]*domain.Order, error) {
	return s.store.Orders().ListByStatus(ctx, domain.HistoryOrderStatuses, historyLimit)
}

// Stats returns the dispatcher dashboard figures.
func (s *OrderService) Stats(ctx context.Context) (*domain.OrderStats, error) {
	var (
		stats domain.OrderStats
		err   error
	)
	orders := s.store.Orders()
	if stats.TotalOrders, err = orders.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if stats.CompletedOrders, err = orders.CountByStatus(ctx, domain.OrderStatusCompleted); err != nil {
		return nil, err
	}
	if stats.ActiveOrders, err = orders.CountByStatus(ctx, domain.ActiveOrderStatuses...); err != nil {
		return nil, err
	}
	if stats.Clients, err = s.store.Users().Count(ctx); err != nil {
		return nil, err
	}
	if stats.ApprovedDrivers, err = s.store.Drivers().CountApproved(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

// transitionFunc inspects the locked order and returns the guard and change to apply.
type transitionFunc func(o *domain.Order) ([]domain.OrderStatus, repository.OrderChange, error)

// transition runs a single-row order mutation under the order lock.
func (s *OrderService) transition(ctx context.Context, actor slog.Attr, orderID string, fn transitionFunc) (*domain.Order, error) {
	unlock, err := s.locks.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	orders := s.store.Orders()
	order, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	from := order.Status

	guard, change, err := fn(order)
	if err != nil {
		return nil, err
	}

	ok, err := orders.Transition(ctx, orderID, guard, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOrderState
	}

	updated, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, actor, updated, from)
	return updated, nil
}

func (s *OrderService) logTransition(ctx context.Context, actor slog.Attr, order *domain.Order, from domain.OrderStatus, attrs ...any) {
	args := []any{
		slog.String("order_id", order.ID),
		actor,
		slog.String("from", string(from)),
		slog.String("to", string(order.Status)),
	}
	s.logger.InfoContext(ctx, "order transition", append(args, attrs...)...)
}

func requireOwner(o *domain.Order, clientID string) error {
	if o.ClientID != clientID {
		return ErrOrderNotFound
	}
	return nil
}

func requireStatus(o *domain.Order, status domain.OrderStatus, change repository.OrderChange) ([]domain.OrderStatus, repository.OrderChange, error) {
	if o.Status != status {
		return nil, repository.OrderChange{}, ErrInvalidOrderState
	}
	return []domain.OrderStatus{status}, change, nil
}

func adminActor(id int64) slog.Attr   { return slog.Int64("admin_id", id) }
func clientActor(id string) slog.Attr { return slog.String("client_id", id) }
func driverActor(id string) slog.Attr { return slog.String("driver_id", id) }
