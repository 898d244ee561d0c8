package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services and handlers. Business-rule
// rejections are surfaced synchronously with no partial effect; the
// enclosing transaction is rolled back before any of these returns.
var (
	// ErrNotFound indicates an unknown entity id.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates an ownership violation.
	ErrForbidden = errors.New("forbidden")

	// ErrInventoryClosed indicates the trip date was cancelled and accepts no holds.
	ErrInventoryClosed = errors.New("trip date is closed for booking")

	// ErrConcurrencyConflict indicates a row lock could not be acquired within
	// the bounded wait. Callers own retry policy.
	ErrConcurrencyConflict = errors.New("concurrent update in progress, retry")

	// Stale-command rejections.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	ErrAlreadyCompleted = errors.New("reservation already completed")
	ErrAlreadySettled   = errors.New("purchase already settled")

	// Card rejections from the payment gateway.
	ErrInvalidCard       = errors.New("invalid card details")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExpiredCard       = errors.New("card expired")

	// ErrExternalGateway indicates a payment provider failure (network, 5xx,
	// malformed response). The caller may retry or offer another method.
	ErrExternalGateway = errors.New("payment gateway error")
)

// ValidationError reports a bad input shape or range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError is returned when a reservation asks for more seats than a
// trip date has left.
type CapacityError struct {
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: requested %d seats, %d available", e.Requested, e.Available)
}

// MaxParticipantsError is returned when the parent trip caps total
// participants below the trip date's own capacity.
type MaxParticipantsError struct {
	Requested int
	Cap       int
	Occupied  int
}

func (e *MaxParticipantsError) Error() string {
	return fmt.Sprintf("max participants exceeded: %d occupied + %d requested > cap %d", e.Occupied, e.Requested, e.Cap)
}

// TransitionError reports an illegal reservation lifecycle edge.
type TransitionError struct {
	From ReservationState
	To   ReservationState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
