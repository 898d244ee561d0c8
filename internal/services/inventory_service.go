package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// InventoryService owns the trip date seat ledger. Every mutation runs
// inside a caller-provided transaction under the trip date row lock, so
// check and write are one atomic step. The ledger never goes negative and
// never exceeds capacity through these paths.
type InventoryService struct {
	tripDates    *database.TripDateRepository
	reservations *database.ReservationRepository
	holds        *HoldCacheService
	logger       *logrus.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	tripDates *database.TripDateRepository,
	reservations *database.ReservationRepository,
	holds *HoldCacheService,
	logger *logrus.Logger,
) *InventoryService {
	return &InventoryService{
		tripDates:    tripDates,
		reservations: reservations,
		holds:        holds,
		logger:       logger,
	}
}

// Reserve takes qty seats on a trip date. Locks the row, validates state,
// capacity and the trip participant cap, then writes the new occupancy.
func (s *InventoryService) Reserve(tx *sqlx.Tx, tripDateID uuid.UUID, qty int) (*models.TripDate, error) {
	td, err := s.tripDates.LockForUpdate(tx, tripDateID)
	if err != nil {
		return nil, err
	}
	if err := td.CanReserve(qty); err != nil {
		return nil, err
	}
	td.ApplyReserve(qty)
	if err := s.tripDates.UpdateOccupancy(tx, td); err != nil {
		return nil, err
	}
	return td, nil
}

// Release returns qty seats to a trip date. Never fails on ledger grounds:
// occupancy floors at zero and a cancelled date stays cancelled.
func (s *InventoryService) Release(tx *sqlx.Tx, tripDateID uuid.UUID, qty int) (*models.TripDate, error) {
	td, err := s.tripDates.LockForUpdate(tx, tripDateID)
	if err != nil {
		return nil, err
	}
	td.ApplyRelease(qty)
	if err := s.tripDates.UpdateOccupancy(tx, td); err != nil {
		return nil, err
	}
	return td, nil
}

// ReleaseForReservations frees the seats held by the given reservations,
// aggregating per trip date and locking dates in sorted id order so
// concurrent multi-date settlements cannot deadlock. Reservations that no
// longer hold seats are skipped.
func (s *InventoryService) ReleaseForReservations(tx *sqlx.Tx, reservations []models.Reservation) error {
	perDate := make(map[uuid.UUID]int)
	for _, r := range reservations {
		if r.HoldsSeats() {
			perDate[r.TripDateID] += r.Quantity
		}
	}
	if len(perDate) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(perDate))
	for id := range perDate {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		if _, err := s.Release(tx, id, perDate[id]); err != nil {
			return err
		}
	}
	return nil
}

// ListUpcoming returns the upcoming departures of a trip with their ledger
// figures
func (s *InventoryService) ListUpcoming(tripID uuid.UUID) ([]models.TripDate, error) {
	return s.tripDates.ListUpcoming(tripID)
}

// Availability is the advisory availability projection for shoppers
type Availability struct {
	TripDateID    uuid.UUID            `json:"trip_date_id"`
	TripName      string               `json:"trip_name"`
	State         models.TripDateState `json:"state"`
	CapacityTotal int                  `json:"capacity_total"`
	Occupied      int                  `json:"occupied"`
	Held          int                  `json:"held"`
	Available     int                  `json:"available"`
	UnitPrice     float64              `json:"unit_price"`
}

// Available reads the ledger figure and subtracts live cart holds. The
// result is advisory; the booking path re-checks under the lock.
func (s *InventoryService) Available(ctx context.Context, tripDateID uuid.UUID) (*Availability, error) {
	td, err := s.tripDates.GetByID(tripDateID)
	if err != nil {
		return nil, err
	}

	held := s.holds.Held(ctx, tripDateID)
	available := td.SeatsAvailable() - held
	if available < 0 {
		available = 0
	}

	return &Availability{
		TripDateID:    td.ID,
		TripName:      td.TripName,
		State:         td.State,
		CapacityTotal: td.CapacityTotal,
		Occupied:      td.CapacityOccupied,
		Held:          held,
		Available:     available,
		UnitPrice:     td.UnitPrice(),
	}, nil
}
