package domain

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusNew, OrderStatusPriceOffered, true},
		{OrderStatusNew, OrderStatusAccepted, false},
		{OrderStatusPriceOffered, OrderStatusPriceOffered, true},
		{OrderStatusPriceOffered, OrderStatusAccepted, true},
		{OrderStatusPriceOffered, OrderStatusDeclined, true},
		{OrderStatusAccepted, OrderStatusInProgress, true},
		{OrderStatusAccepted, OrderStatusPriceOffered, false},
		{OrderStatusInProgress, OrderStatusCompleted, true},
		{OrderStatusInProgress, OrderStatusAccepted, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusDeclined, OrderStatusPriceOffered, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestActiveStatusesCanBeCancelled(t *testing.T) {
	t.Parallel()

	for _, s := range ActiveOrderStatuses {
		if s.IsTerminal() {
			t.Errorf("%s listed as active but terminal", s)
		}
		if !CanTransition(s, OrderStatusCancelled) {
			t.Errorf("%s cannot be cancelled", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusDeclined, OrderStatusCompleted, OrderStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if len(OrderTransitions[s]) != 0 {
			t.Errorf("terminal %s has outgoing transitions", s)
		}
	}
}

func TestOrder_CloneIsDeep(t *testing.T) {
	t.Parallel()

	price := 500.0
	o := &Order{ID: "o1", Price: &price}
	c := o.Clone()
	*c.Price = 100

	if o.PriceValue() != 500 {
		t.Errorf("clone shares the price pointer")
	}
	if (&Order{}).PriceValue() != 0 {
		t.Errorf("unset price should read as zero")
	}
}
