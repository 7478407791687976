// Package memory provides an in-process implementation of the storage facade.
// It backs local development and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Store keeps every entity in maps guarded by a single mutex.
// Writes outside a transaction and whole transactions are serialized by txMu,
// so rolling back a snapshot never discards another caller's write.
// Reads outside a transaction share txMu and never observe uncommitted changes.
type Store struct {
	txMu sync.RWMutex
	mu   sync.RWMutex
	data *dataset
	now  func() time.Time
}

type dataset struct {
	users    map[string]*domain.User
	drivers  map[string]*domain.Driver
	orders   map[string]*domain.Order
	reviews  map[string]*domain.Review // by order ID
	earnings map[string]*domain.Earning // by order ID
	admins   map[int64]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: &dataset{
			users:    make(map[string]*domain.User),
			drivers:  make(map[string]*domain.Driver),
			orders:   make(map[string]*domain.Order),
			reviews:  make(map[string]*domain.Review),
			earnings: make(map[string]*domain.Earning),
			admins:   make(map[int64]struct{}),
		},
		now: time.Now,
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository       { return &userRepository{s: s} }
func (s *Store) Drivers() repository.DriverRepository   { return &driverRepository{s: s} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepository{s: s} }
func (s *Store) Reviews() repository.ReviewRepository   { return &reviewRepository{s: s} }
func (s *Store) Earnings() repository.EarningRepository { return &earningRepository{s: s} }
func (s *Store) Admins() repository.AdminRepository     { return &adminRepository{s: s} }

// WithinTransaction runs fn with exclusive write access and restores the
// previous state if fn fails.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, txRepositories{s: s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

type txRepositories struct {
	s *Store
}

func (t txRepositories) Users() repository.UserRepository {
	return &userRepository{s: t.s, inTx: true}
}
func (t txRepositories) Drivers() repository.DriverRepository {
	return &driverRepository{s: t.s, inTx: true}
}
func (t txRepositories) Orders() repository.OrderRepository {
	return &orderRepository{s: t.s, inTx: true}
}
func (t txRepositories) Reviews() repository.ReviewRepository {
	return &reviewRepository{s: t.s, inTx: true}
}
func (t txRepositories) Earnings() repository.EarningRepository {
	return &earningRepository{s: t.s, inTx: true}
}
func (t txRepositories) Admins() repository.AdminRepository {
	return &adminRepository{s: t.s, inTx: true}
}

// write runs fn under the data lock. Outside a transaction it also takes txMu.
func (s *Store) write(inTx bool, fn func(d *dataset) error) error {
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// read runs fn under the data read lock. Outside a transaction it waits for
// any running transaction to finish.
func (s *Store) read(inTx bool, fn func(d *dataset) error) error {
	if !inTx {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		users:    make(map[string]*domain.User, len(d.users)),
		drivers:  make(map[string]*domain.Driver, len(d.drivers)),
		orders:   make(map[string]*domain.Order, len(d.orders)),
		reviews:  make(map[string]*domain.Review, len(d.reviews)),
		earnings: make(map[string]*domain.Earning, len(d.earnings)),
		admins:   make(map[int64]struct{}, len(d.admins)),
	}
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.drivers {
		c.drivers[k] = cloneDriver(v)
	}
	for k, v := range d.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range d.reviews {
		r := *v
		c.reviews[k] = &r
	}
	for k, v := range d.earnings {
		e := *v
		c.earnings[k] = &e
	}
	for k := range d.admins {
		c.admins[k] = struct{}{}
	}
	return c
}

func cloneDriver(d *domain.Driver) *domain.Driver {
	c := *d
	c.Photos = append([]domain.Photo(nil), d.Photos...)
	return &c
}

func newID() string {
	return uuid.New().String()
}

// ──────────────────────────────────────────────
// USERS
// ──────────────────────────────────────────────

type userRepository struct {
	s    *Store
	inTx bool
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	var stored domain.User
	err := r.s.write(r.inTx, func(d *dataset) error {
		for _, u := range d.users {
			if u.ExternalID == user.ExternalID {
				u.Username = user.Username
				u.FirstName = user.FirstName
				u.LastName = user.LastName
				if user.Phone != "" {
					u.Phone = user.Phone
				}
				stored = *u
				return nil
			}
		}
		u := *user
		if u.ID == "" {
			u.ID = newID()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = r.s.now()
		}
		d.users[u.ID] = &u
		stored = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(r.inTx, func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(r.inTx, func(d *dataset) error {
		for _, u := range d.users {
			if u.ExternalID == externalID {
				c := *u
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepository) UpdatePhone(ctx context.Context, id, phone string) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.Phone = phone
		return nil
	})
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.s.read(r.inTx, func(d *dataset) error {
		n = len(d.users)
		return nil
	})
	return n, err
}

// ──────────────────────────────────────────────
// DRIVERS
// ──────────────────────────────────────────────

type driverRepository struct {
	s    *Store
	inTx bool
}

func (r *driverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		for _, existing := range d.drivers {
			if existing.ExternalID == driver.ExternalID {
				return repository.ErrAlreadyExists
			}
		}
		if driver.ID == "" {
			driver.ID = newID()
		}
		if driver.CreatedAt.IsZero() {
			driver.CreatedAt = r.s.now()
		}
		d.drivers[driver.ID] = cloneDriver(driver)
		return nil
	})
}

func (r *driverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	var out *domain.Driver
	err := r.s.read(r.inTx, func(d *dataset) error {
		drv, ok := d.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneDriver(drv)
		return nil
	})
	return out, err
}

func (r *driverRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.Driver, error) {
	var out *domain.Driver
	err := r.s.read(r.inTx, func(d *dataset) error {
		for _, drv := range d.drivers {
			if drv.ExternalID == externalID {
				out = cloneDriver(drv)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *driverRepository) list(match func(*domain.Driver) bool) ([]*domain.Driver, error) {
	var out []*domain.Driver
	err := r.s.read(r.inTx, func(d *dataset) error {
		for _, drv := range d.drivers {
			if match(drv) {
				out = append(out, cloneDriver(drv))
			}
		}
		return nil
	})
	sortDrivers(out)
	return out, err
}

func (r *driverRepository) ListByApproval(ctx context.Context, approved bool) ([]*domain.Driver, error) {
	return r.list(func(d *domain.Driver) bool { return d.Approved == approved })
}

func (r *driverRepository) ListAssignable(ctx context.Context) ([]*domain.Driver, error) {
	return r.list(func(d *domain.Driver) bool { return d.Assignable() })
}

func (r *driverRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		drv, ok := d.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		drv.Approved = approved
		return nil
	})
}

func (r *driverRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		if _, ok := d.drivers[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.drivers, id)
		return nil
	})
}

func (r *driverRepository) UpdateDutyStatus(ctx context.Context, id string, from []domain.DutyStatus, to domain.DutyStatus) (bool, error) {
	updated := false
	err := r.s.write(r.inTx, func(d *dataset) error {
		drv, ok := d.drivers[id]
		if !ok {
			return repository.ErrNotFound
		}
		if len(from) > 0 && !containsDuty(from, drv.DutyStatus) {
			return nil
		}
		drv.DutyStatus = to
		updated = true
		return nil
	})
	return updated, err
}

func (r *driverRepository) ResetDutyStatus(ctx context.Context, from, to domain.DutyStatus) ([]*domain.Driver, error) {
	var out []*domain.Driver
	err := r.s.write(r.inTx, func(d *dataset) error {
		for _, drv := range d.drivers {
			if drv.DutyStatus == from {
				drv.DutyStatus = to
				out = append(out, cloneDriver(drv))
			}
		}
		return nil
	})
	sortDrivers(out)
	return out, err
}

func (r *driverRepository) CountApproved(ctx context.Context) (int, error) {
	drivers, err := r.ListByApproval(ctx, true)
	return len(drivers), err
}

func sortDrivers(drivers []*domain.Driver) {
	sort.Slice(drivers, func(i, j int) bool {
		if !drivers[i].CreatedAt.Equal(drivers[j].CreatedAt) {
			return drivers[i].CreatedAt.Before(drivers[j].CreatedAt)
		}
		return drivers[i].ID < drivers[j].ID
	})
}

func containsDuty(set []domain.DutyStatus, s domain.DutyStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// ORDERS
// ──────────────────────────────────────────────

type orderRepository struct {
	s    *Store
	inTx bool
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		if order.ID == "" {
			order.ID = newID()
		}
		if _, ok := d.orders[order.ID]; ok {
			return repository.ErrAlreadyExists
		}
		if order.CreatedAt.IsZero() {
			order.CreatedAt = r.s.now()
		}
		d.orders[order.ID] = order.Clone()
		return nil
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.read(r.inTx, func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r *orderRepository) Transition(ctx context.Context, id string, from []domain.OrderStatus, change repository.OrderChange) (bool, error) {
	updated := false
	err := r.s.write(r.inTx, func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !containsStatus(from, o.Status) {
			return nil
		}
		applyChange(o, change)
		updated = true
		return nil
	})
	return updated, err
}

func applyChange(o *domain.Order, change repository.OrderChange) {
	if change.Status != "" {
		o.Status = change.Status
	}
	if change.Price != nil {
		p := *change.Price
		o.Price = &p
	}
	if change.CounterOffer != nil {
		p := *change.CounterOffer
		o.CounterOffer = &p
	}
	if change.DriverID != "" {
		o.DriverID = change.DriverID
	}
	if !change.CompletedAt.IsZero() {
		o.CompletedAt = change.CompletedAt
	}
}

func (r *orderRepository) CancelActive(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.s.write(r.inTx, func(d *dataset) error {
		for _, o := range d.orders {
			if containsStatus(domain.ActiveOrderStatuses, o.Status) {
				o.Status = domain.OrderStatusCancelled
				out = append(out, o.Clone())
			}
		}
		return nil
	})
	sortNewestFirst(out)
	return out, err
}

func (r *orderRepository) filter(match func(*domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	_ = r.s.read(r.inTx, func(d *dataset) error {
		for _, o := range d.orders {
			if match(o) {
				out = append(out, o.Clone())
			}
		}
		return nil
	})
	return out
}

func (r *orderRepository) ListByStatus(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	out := r.filter(func(o *domain.Order) bool { return containsStatus(statuses, o.Status) })
	sortNewestFirst(out)
	return limitOrders(out, limit), nil
}

func (r *orderRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]*domain.Order, error) {
	out := r.filter(func(o *domain.Order) bool { return o.ClientID == clientID })
	sortNewestFirst(out)
	return limitOrders(out, limit), nil
}

func (r *orderRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Order, error) {
	out := r.filter(func(o *domain.Order) bool { return o.DriverID == driverID })
	sort.SliceStable(out, func(i, j int) bool {
		ai := out[i].Status == domain.OrderStatusInProgress
		aj := out[j].Status == domain.OrderStatusInProgress
		if ai != aj {
			return ai
		}
		return newer(out[i], out[j])
	})
	return limitOrders(out, limit), nil
}

func (r *orderRepository) CountByClient(ctx context.Context, clientID string) (int, error) {
	return len(r.filter(func(o *domain.Order) bool { return o.ClientID == clientID })), nil
}

func (r *orderRepository) CountByStatus(ctx context.Context, statuses ...domain.OrderStatus) (int, error) {
	return len(r.filter(func(o *domain.Order) bool {
		return len(statuses) == 0 || containsStatus(statuses, o.Status)
	})), nil
}

func (r *orderRepository) CountInProgressByDriver(ctx context.Context, driverID, excludeOrderID string) (int, error) {
	return len(r.filter(func(o *domain.Order) bool {
		return o.DriverID == driverID && o.ID != excludeOrderID && o.Status == domain.OrderStatusInProgress
	})), nil
}

func containsStatus(set []domain.OrderStatus, s domain.OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func newer(a, b *domain.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func sortNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return newer(orders[i], orders[j]) })
}

func limitOrders(orders []*domain.Order, limit int) []*domain.Order {
	if limit > 0 && len(orders) > limit {
		return orders[:limit]
	}
	return orders
}

// ──────────────────────────────────────────────
// REVIEWS, EARNINGS, ADMINS
// ──────────────────────────────────────────────

type reviewRepository struct {
	s    *Store
	inTx bool
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		if _, ok := d.reviews[review.OrderID]; ok {
			return repository.ErrAlreadyExists
		}
		if review.ID == "" {
			review.ID = newID()
		}
		if review.CreatedAt.IsZero() {
			review.CreatedAt = r.s.now()
		}
		c := *review
		d.reviews[review.OrderID] = &c
		return nil
	})
}

func (r *reviewRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Review, error) {
	var out *domain.Review
	err := r.s.read(r.inTx, func(d *dataset) error {
		rv, ok := d.reviews[orderID]
		if !ok {
			return repository.ErrNotFound
		}
		c := *rv
		out = &c
		return nil
	})
	return out, err
}

func (r *reviewRepository) UpdateComment(ctx context.Context, orderID, comment string) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		rv, ok := d.reviews[orderID]
		if !ok {
			return repository.ErrNotFound
		}
		rv.Comment = comment
		return nil
	})
}

func (r *reviewRepository) RatingByDriver(ctx context.Context, driverID string) (float64, int, error) {
	var sum, count int
	err := r.s.read(r.inTx, func(d *dataset) error {
		for _, rv := range d.reviews {
			if rv.DriverID == driverID {
				sum += rv.Rating
				count++
			}
		}
		return nil
	})
	if count == 0 {
		return 0, 0, err
	}
	return float64(sum) / float64(count), count, err
}

type earningRepository struct {
	s    *Store
	inTx bool
}

func (r *earningRepository) Create(ctx context.Context, earning *domain.Earning) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		if _, ok := d.earnings[earning.OrderID]; ok {
			return repository.ErrAlreadyExists
		}
		if earning.ID == "" {
			earning.ID = newID()
		}
		if earning.CreatedAt.IsZero() {
			earning.CreatedAt = r.s.now()
		}
		c := *earning
		d.earnings[earning.OrderID] = &c
		return nil
	})
}

func (r *earningRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Earning, error) {
	var out *domain.Earning
	err := r.s.read(r.inTx, func(d *dataset) error {
		e, ok := d.earnings[orderID]
		if !ok {
			return repository.ErrNotFound
		}
		c := *e
		out = &c
		return nil
	})
	return out, err
}

func (r *earningRepository) SumByDriver(ctx context.Context, driverID string, since time.Time) (float64, error) {
	var sum float64
	err := r.s.read(r.inTx, func(d *dataset) error {
		for _, e := range d.earnings {
			if e.DriverID == driverID && !e.CreatedAt.Before(since) {
				sum += e.Amount
			}
		}
		return nil
	})
	return sum, err
}

type adminRepository struct {
	s    *Store
	inTx bool
}

func (r *adminRepository) Add(ctx context.Context, externalID int64) error {
	return r.s.write(r.inTx, func(d *dataset) error {
		d.admins[externalID] = struct{}{}
		return nil
	})
}

func (r *adminRepository) List(ctx context.Context) ([]int64, error) {
	var out []int64
	err := r.s.read(r.inTx, func(d *dataset) error {
		for id := range d.admins {
			out = append(out, id)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}
