package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a client's rating of a completed order.
type Review struct {
	ID        string
	OrderID   string
	ClientID  string
	DriverID  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Earning records what a driver made on a completed order.
type Earning struct {
	ID        string
	DriverID  string
	OrderID   string
	Amount    float64
	CreatedAt time.Time
}

// EarningsSummary aggregates a driver's earnings over standard periods.
type EarningsSummary struct {
	Today float64
	Month float64
	Total float64
}
