package domain

import "time"

// DutyStatus represents the availability of a driver.
type DutyStatus string

const (
	DutyStatusOffDuty DutyStatus = "OFF_DUTY"
	DutyStatusOnDuty  DutyStatus = "ON_DUTY"
	DutyStatusOnOrder DutyStatus = "ON_ORDER"
	DutyStatusArrived DutyStatus = "ARRIVED"
)

// Valid reports whether s is a known duty status.
func (s DutyStatus) Valid() bool {
	switch s {
	case DutyStatusOffDuty, DutyStatusOnDuty, DutyStatusOnOrder, DutyStatusArrived:
		return true
	}
	return false
}

// SelfService reports whether a driver may switch to s on their own.
func (s DutyStatus) SelfService() bool {
	return s == DutyStatusOnDuty || s == DutyStatusOffDuty
}

// AssignableDutyStatuses lists the duty statuses a driver must be in to receive an order.
var AssignableDutyStatuses = []DutyStatus{DutyStatusOnDuty, DutyStatusOnOrder}

// PhotoPosition identifies which side of the vehicle a photo shows.
type PhotoPosition string

const (
	PhotoFront PhotoPosition = "FRONT"
	PhotoBack  PhotoPosition = "BACK"
	PhotoLeft  PhotoPosition = "LEFT"
	PhotoRight PhotoPosition = "RIGHT"
)

// PhotoPositions is the order in which vehicle photos are collected.
var PhotoPositions = []PhotoPosition{PhotoFront, PhotoBack, PhotoLeft, PhotoRight}

// Photo is a reference to a vehicle photo stored by the chat transport.
type Photo struct {
	Position PhotoPosition `json:"position"`
	Ref      string        `json:"ref"`
}

// Driver represents a registered driver.
type Driver struct {
	ID                  string
	ExternalID          int64
	Name                string
	LicenseNumber       string
	VehicleRegistration string
	PlateNumber         string
	Photos              []Photo
	Approved            bool
	DutyStatus          DutyStatus
	CreatedAt           time.Time
}

// Assignable reports whether an order may be handed to the driver.
func (d *Driver) Assignable() bool {
	if !d.Approved {
		return false
	}
	for _, s := range AssignableDutyStatuses {
		if d.DutyStatus == s {
			return true
		}
	}
	return false
}

// DriverSummary is a driver annotated with the figures shown to dispatchers.
type DriverSummary struct {
	Driver        *Driver
	ActiveOrders  int
	AverageRating float64
	RatingCount   int
	TotalEarnings float64
}
