package models

import (
	"time"

	"github.com/google/uuid"
)

// TripDateState represents the lifecycle state of a scheduled departure
type TripDateState string

const (
	TripDateAvailable TripDateState = "available"
	TripDateFull      TripDateState = "full"
	TripDateCancelled TripDateState = "cancelled"
)

// TripDate is a scheduled departure of a trip with its own seat inventory.
// capacity_occupied and state are mutated exclusively by the inventory
// ledger under a row-level lock; everything else belongs to the catalog.
type TripDate struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	TripID           uuid.UUID     `json:"trip_id" db:"trip_id"`
	StartsAt         time.Time     `json:"starts_at" db:"starts_at"`
	EndsAt           time.Time     `json:"ends_at" db:"ends_at"`
	CapacityTotal    int           `json:"capacity_total" db:"capacity_total"`
	CapacityOccupied int           `json:"capacity_occupied" db:"capacity_occupied"`
	State            TripDateState `json:"state" db:"state"`
	PriceOverride    *float64      `json:"price_override,omitempty" db:"price_override"`

	// Joined from the parent trip.
	TripName        string  `json:"trip_name" db:"trip_name"`
	BasePrice       float64 `json:"base_price" db:"base_price"`
	MaxParticipants *int    `json:"max_participants,omitempty" db:"max_participants"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SeatsAvailable returns the raw remaining capacity, clamped at zero. This is
// the stored-ledger figure; the advisory display value additionally subtracts
// uncommitted cart holds (see InventoryService.Available).
func (t *TripDate) SeatsAvailable() int {
	remaining := t.CapacityTotal - t.CapacityOccupied
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UnitPrice returns the date-specific price, falling back to the trip base price.
func (t *TripDate) UnitPrice() float64 {
	if t.PriceOverride != nil {
		return *t.PriceOverride
	}
	return t.BasePrice
}

// CanReserve checks whether qty seats may be taken right now. Callers must
// hold the row lock; the result is only meaningful inside that critical
// section.
func (t *TripDate) CanReserve(qty int) error {
	if t.State == TripDateCancelled {
		return ErrInventoryClosed
	}
	if available := t.SeatsAvailable(); available < qty {
		return &CapacityError{Requested: qty, Available: available}
	}
	if t.MaxParticipants != nil && t.CapacityOccupied+qty > *t.MaxParticipants {
		return &MaxParticipantsError{Requested: qty, Cap: *t.MaxParticipants, Occupied: t.CapacityOccupied}
	}
	return nil
}

// ApplyReserve increments occupancy after CanReserve passed, flipping the
// state to full when the last seat is taken.
func (t *TripDate) ApplyReserve(qty int) {
	t.CapacityOccupied += qty
	if t.CapacityOccupied >= t.CapacityTotal && t.State == TripDateAvailable {
		t.State = TripDateFull
	}
}

// ApplyRelease decrements occupancy, flooring at zero, and reopens a full
// date once seats free up. Releasing never fails; a cancelled date keeps its
// state so it stays closed for new bookings.
func (t *TripDate) ApplyRelease(qty int) {
	t.CapacityOccupied -= qty
	if t.CapacityOccupied < 0 {
		t.CapacityOccupied = 0
	}
	if t.State == TripDateFull && t.CapacityOccupied < t.CapacityTotal {
		t.State = TripDateAvailable
	}
}

// StateForOccupancy returns the ledger state that matches a recomputed
// occupancy figure. Used by reconciliation when overwriting drifted values.
func (t *TripDate) StateForOccupancy(occupied int) TripDateState {
	if t.State == TripDateCancelled {
		return TripDateCancelled
	}
	if occupied >= t.CapacityTotal {
		return TripDateFull
	}
	return TripDateAvailable
}
