package service

import (
	"errors"
	"fmt"

	"dispatch/internal/repository"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	// ErrValidation is returned for malformed input. Nothing was changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed is returned when the entity is not in a state that allows the operation.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrForbidden is returned when the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

var (
	ErrInvalidActorID         = fmt.Errorf("%w: invalid actor id", ErrValidation)
	ErrInvalidPrice           = fmt.Errorf("%w: price must be a positive number", ErrValidation)
	ErrEmptyAddress           = fmt.Errorf("%w: pickup and destination addresses are required", ErrValidation)
	ErrOutsideServiceArea     = fmt.Errorf("%w: address is outside the service area", ErrValidation)
	ErrInvalidPaymentMethod   = fmt.Errorf("%w: invalid payment method", ErrValidation)
	ErrInvalidSchedule        = fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	ErrInvalidRating          = fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	ErrInvalidDutyStatus      = fmt.Errorf("%w: drivers may only switch between ON_DUTY and OFF_DUTY", ErrValidation)
	ErrInvalidPhone           = fmt.Errorf("%w: phone is required", ErrValidation)
	ErrEmptyInput             = fmt.Errorf("%w: input is empty", ErrValidation)
	ErrIncompleteRegistration = fmt.Errorf("%w: registration is incomplete", ErrValidation)
	ErrIncompleteDraft        = fmt.Errorf("%w: order draft is incomplete", ErrValidation)

	ErrOrderNotFound  = fmt.Errorf("%w: order", ErrNotFound)
	ErrDriverNotFound = fmt.Errorf("%w: driver", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("%w: user", ErrNotFound)
	ErrReviewNotFound = fmt.Errorf("%w: review", ErrNotFound)
	ErrNoDraft        = fmt.Errorf("%w: no draft in progress", ErrNotFound)
	ErrNoPendingInput = fmt.Errorf("%w: no input is expected", ErrNotFound)

	ErrInvalidOrderState   = fmt.Errorf("%w: order is not in the required state", ErrPreconditionFailed)
	ErrNoCounterOffer      = fmt.Errorf("%w: order has no counter-offer", ErrPreconditionFailed)
	ErrDriverNotApproved   = fmt.Errorf("%w: driver is not approved", ErrPreconditionFailed)
	ErrDriverNotAssignable = fmt.Errorf("%w: driver is not available", ErrPreconditionFailed)
	ErrDriverBusy          = fmt.Errorf("%w: driver has orders in progress", ErrPreconditionFailed)
	ErrAlreadyReviewed     = fmt.Errorf("%w: order already reviewed", ErrPreconditionFailed)
	ErrAlreadyRegistered   = fmt.Errorf("%w: driver already registered", ErrPreconditionFailed)
	ErrLockTimeout         = fmt.Errorf("%w: entity is busy, try again", ErrPreconditionFailed)
	ErrNotAssignedDriver   = fmt.Errorf("%w: order is not assigned to this driver", ErrPreconditionFailed)

	ErrNotAdmin = fmt.Errorf("%w: administrator rights required", ErrForbidden)
)

// notFound maps a repository miss to kind and passes other errors through.
func notFound(err, kind error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return kind
	}
	return err
}
