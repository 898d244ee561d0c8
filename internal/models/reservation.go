package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationState represents the lifecycle state of a reservation
type ReservationState string

const (
	ReservationPending   ReservationState = "pending"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationCancelled ReservationState = "cancelled"
	ReservationCompleted ReservationState = "completed"
)

// MaxReservationQuantity caps the seats a single reservation may hold.
const MaxReservationQuantity = 20

// LedgerEffect is the inventory side effect a legal transition carries.
type LedgerEffect int

const (
	LedgerNone LedgerEffect = iota
	LedgerReserve
	LedgerRelease
)

// legal transition edges and their ledger effects. cancelled and completed
// are terminal except for the administrative re-activation edges out of
// cancelled, which must re-validate capacity.
var transitions = map[ReservationState]map[ReservationState]LedgerEffect{
	ReservationPending: {
		ReservationConfirmed: LedgerNone,
		ReservationCancelled: LedgerRelease,
	},
	ReservationConfirmed: {
		ReservationCompleted: LedgerNone,
		ReservationCancelled: LedgerRelease,
	},
	ReservationCancelled: {
		ReservationPending:   LedgerReserve,
		ReservationConfirmed: LedgerReserve,
	},
}

// TransitionEffect validates a lifecycle edge and returns its ledger effect.
// Any edge not listed above is rejected with a TransitionError and must be
// applied with no side effects.
func TransitionEffect(from, to ReservationState) (LedgerEffect, error) {
	if effects, ok := transitions[from]; ok {
		if effect, ok := effects[to]; ok {
			return effect, nil
		}
	}
	return LedgerNone, &TransitionError{From: from, To: to}
}

// Reservation is a hold of N seats on a trip date for a user, within a
// purchase. Reservations are never deleted; cancellation is a state change.
type Reservation struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	Reference  string           `json:"reference" db:"reference"`
	PurchaseID uuid.UUID        `json:"purchase_id" db:"purchase_id"`
	TripDateID uuid.UUID        `json:"trip_date_id" db:"trip_date_id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	Quantity   int              `json:"quantity" db:"quantity"`
	UnitPrice  float64          `json:"unit_price" db:"unit_price"`
	Subtotal   float64          `json:"subtotal" db:"subtotal"`
	State      ReservationState `json:"state" db:"state"`
	Notes      *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// HoldsSeats reports whether the reservation currently counts against
// trip-date occupancy. Occupied is authoritative from every non-cancelled
// reservation, including completed ones on past dates.
func (r *Reservation) HoldsSeats() bool {
	return r.State != ReservationCancelled
}

// ReservationDetail is the expanded projection returned to callers,
// joining purchase and trip-date context onto the reservation row.
type ReservationDetail struct {
	Reservation
	PurchaseReference string        `json:"purchase_reference" db:"purchase_reference"`
	PurchaseState     PurchaseState `json:"purchase_state" db:"purchase_state"`
	PurchaseTotal     float64       `json:"purchase_total" db:"purchase_total"`
	TripName          string        `json:"trip_name" db:"trip_name"`
	TripDateStartsAt  time.Time     `json:"trip_date_starts_at" db:"trip_date_starts_at"`
	TripDateEndsAt    time.Time     `json:"trip_date_ends_at" db:"trip_date_ends_at"`
}

// CreateReservationRequest is the payload for creating a reservation.
type CreateReservationRequest struct {
	TripDateID string  `json:"trip_date_id" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required"`
	Notes      *string `json:"notes,omitempty"`
}

// Validate checks the request range rules before any database work.
func (r *CreateReservationRequest) Validate() error {
	if _, err := uuid.Parse(r.TripDateID); err != nil {
		return &ValidationError{Field: "trip_date_id", Reason: "must be a valid UUID"}
	}
	if r.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if r.Quantity > MaxReservationQuantity {
		return &ValidationError{Field: "quantity", Reason: "must not exceed 20"}
	}
	return nil
}

// SetReservationStatusRequest is the administrative override payload.
type SetReservationStatusRequest struct {
	State string  `json:"state" binding:"required"`
	Notes *string `json:"notes,omitempty"`
}

// ParseReservationState validates a state string from an admin request.
func ParseReservationState(s string) (ReservationState, error) {
	switch ReservationState(s) {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted:
		return ReservationState(s), nil
	}
	return "", &ValidationError{Field: "state", Reason: "must be one of pending, confirmed, cancelled, completed"}
}
