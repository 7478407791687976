package domain

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew          OrderStatus = "NEW"
	OrderStatusPriceOffered OrderStatus = "PRICE_OFFERED"
	OrderStatusAccepted     OrderStatus = "ACCEPTED"
	OrderStatusDeclined     OrderStatus = "DECLINED"
	OrderStatusInProgress   OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted    OrderStatus = "COMPLETED"
	OrderStatusCancelled    OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDeclined, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ActiveOrderStatuses are the non-terminal statuses.
var ActiveOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusPriceOffered,
	OrderStatusAccepted,
	OrderStatusInProgress,
}

// HistoryOrderStatuses are the statuses listed in the dispatcher history.
var HistoryOrderStatuses = []OrderStatus{OrderStatusCompleted, OrderStatusCancelled}

// OrderTransitions is the order state diagram.
// PRICE_OFFERED loops onto itself for re-offers and counter-counter-offers.
var OrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:          {OrderStatusPriceOffered, OrderStatusCancelled},
	OrderStatusPriceOffered: {OrderStatusPriceOffered, OrderStatusAccepted, OrderStatusDeclined, OrderStatusCancelled},
	OrderStatusAccepted:     {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress:   {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range OrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentMethod represents how a pre-order will be paid.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// Order represents a ride request.
type Order struct {
	ID            string
	ClientID      string
	ClientSeq     int // per-client number shown as "#n"
	DriverID      string
	FromAddress   string
	ToAddress     string
	Comment       string
	ScheduledAt   time.Time // zero for immediate orders
	PaymentMethod PaymentMethod
	Price         *float64
	CounterOffer  *float64
	Status        OrderStatus
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// IsPreOrder reports whether the order is scheduled for later.
func (o *Order) IsPreOrder() bool {
	return !o.ScheduledAt.IsZero()
}

// PriceValue returns the price or zero when unset.
func (o *Order) PriceValue() float64 {
	if o.Price == nil {
		return 0
	}
	return *o.Price
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	if o.Price != nil {
		p := *o.Price
		c.Price = &p
	}
	if o.CounterOffer != nil {
		p := *o.CounterOffer
		c.CounterOffer = &p
	}
	return &c
}

// OrderStats holds the dispatcher dashboard figures.
type OrderStats struct {
	TotalOrders     int
	CompletedOrders int
	ActiveOrders    int
	Clients         int
	ApprovedDrivers int
}
