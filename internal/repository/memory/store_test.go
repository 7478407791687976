package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

func seedOrder(t *testing.T, s *Store, status domain.OrderStatus) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ClientID:    "c1",
		FromAddress: "Svetlogorsk",
		ToAddress:   "Airport",
		Status:      status,
	}
	if err := s.Orders().Create(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrderTransition_Guarded(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	o := seedOrder(t, s, domain.OrderStatusNew)

	price := 500.0
	ok, err := s.Orders().Transition(ctx, o.ID,
		[]domain.OrderStatus{domain.OrderStatusNew},
		repository.OrderChange{Status: domain.OrderStatusPriceOffered, Price: &price})
	if err != nil || !ok {
		t.Fatalf("expected transition, got ok=%v err=%v", ok, err)
	}

	ok, err = s.Orders().Transition(ctx, o.ID,
		[]domain.OrderStatus{domain.OrderStatusNew},
		repository.OrderChange{Status: domain.OrderStatusCancelled})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if ok {
		t.Fatal("guard should have refused a stale status")
	}

	stored, err := s.Orders().GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusPriceOffered || stored.PriceValue() != 500 {
		t.Errorf("unexpected order %s at %v", stored.Status, stored.PriceValue())
	}

	if _, err := s.Orders().Transition(ctx, "missing", nil, repository.OrderChange{}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByID_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	o := seedOrder(t, s, domain.OrderStatusNew)

	got, err := s.Orders().GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = domain.OrderStatusCompleted

	again, err := s.Orders().GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Status != domain.OrderStatusNew {
		t.Errorf("mutating a returned order leaked into the store")
	}
}

func TestWithinTransaction_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	o := seedOrder(t, s, domain.OrderStatusInProgress)
	boom := errors.New("boom")

	err := s.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if _, err := tx.Orders().Transition(ctx, o.ID,
			[]domain.OrderStatus{domain.OrderStatusInProgress},
			repository.OrderChange{Status: domain.OrderStatusCompleted}); err != nil {
			return err
		}
		if err := tx.Earnings().Create(ctx, &domain.Earning{DriverID: "d1", OrderID: o.ID, Amount: 500}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := s.Orders().GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusInProgress {
		t.Errorf("expected rollback to IN_PROGRESS, got %s", stored.Status)
	}
	if _, err := s.Earnings().GetByOrderID(ctx, o.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected the earning to be rolled back, got %v", err)
	}
}

func TestWithinTransaction_ReadsWaitForCommit(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	o := seedOrder(t, s, domain.OrderStatusInProgress)

	written := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- s.WithinTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
			if _, err := tx.Orders().Transition(ctx, o.ID,
				[]domain.OrderStatus{domain.OrderStatusInProgress},
				repository.OrderChange{Status: domain.OrderStatusCompleted}); err != nil {
				return err
			}
			close(written)
			<-release
			return errors.New("earning failed")
		})
	}()
	<-written

	seen := make(chan domain.OrderStatus, 1)
	go func() {
		stored, err := s.Orders().GetByID(ctx, o.ID)
		if err != nil {
			seen <- ""
			return
		}
		seen <- stored.Status
	}()

	select {
	case status := <-seen:
		t.Fatalf("read returned %s while the transaction was still open", status)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-txDone; err == nil {
		t.Fatal("expected the transaction to fail")
	}
	if status := <-seen; status != domain.OrderStatusInProgress {
		t.Errorf("expected the rolled back status IN_PROGRESS, got %q", status)
	}
}

func TestEarnings_OnePerOrder(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	if err := s.Earnings().Create(ctx, &domain.Earning{DriverID: "d1", OrderID: "o1", Amount: 300}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Earnings().Create(ctx, &domain.Earning{DriverID: "d1", OrderID: "o1", Amount: 300}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	total, err := s.Earnings().SumByDriver(ctx, "d1", time.Time{})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 300 {
		t.Errorf("expected 300, got %v", total)
	}
}

func TestCancelActive_LeavesTerminalOrders(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	active := seedOrder(t, s, domain.OrderStatusAccepted)
	done := seedOrder(t, s, domain.OrderStatusCompleted)

	cancelled, err := s.Orders().CancelActive(ctx)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != active.ID {
		t.Fatalf("expected only the active order, got %d", len(cancelled))
	}
	stored, err := s.Orders().GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusCompleted {
		t.Errorf("completed order changed to %s", stored.Status)
	}
}

func TestDrivers_DutyStatusGuards(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	d := &domain.Driver{ExternalID: 1, Approved: true, DutyStatus: domain.DutyStatusOnOrder}
	if err := s.Drivers().Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Drivers().Create(ctx, &domain.Driver{ExternalID: 1}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	ok, err := s.Drivers().UpdateDutyStatus(ctx, d.ID, []domain.DutyStatus{domain.DutyStatusOnDuty}, domain.DutyStatusOffDuty)
	if err != nil || ok {
		t.Fatalf("expected the guard to refuse, got ok=%v err=%v", ok, err)
	}

	released, err := s.Drivers().ResetDutyStatus(ctx, domain.DutyStatusOnOrder, domain.DutyStatusOnDuty)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(released) != 1 || released[0].DutyStatus != domain.DutyStatusOnDuty {
		t.Fatalf("expected one released driver, got %+v", released)
	}
}
