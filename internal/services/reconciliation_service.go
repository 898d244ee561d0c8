package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconciliationService detects and repairs drift between the trip date
// occupancy counters and the reservation rows they summarize. The
// reservation rows are the source of truth.
type ReconciliationService struct {
	db           *sqlx.DB
	tripDates    *database.TripDateRepository
	reservations *database.ReservationRepository
	logger       *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	db *sqlx.DB,
	tripDates *database.TripDateRepository,
	reservations *database.ReservationRepository,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		db:           db,
		tripDates:    tripDates,
		reservations: reservations,
		logger:       logger,
	}
}

// DriftReport compares a trip date's stored counter with the recomputed sum.
// Contributing carries the reservations behind the recomputed figure; only
// Diagnose fills it, the sweep keeps its reads minimal.
type DriftReport struct {
	TripDateID     uuid.UUID            `json:"trip_date_id"`
	StoredOccupied int                  `json:"stored_occupied"`
	ActualOccupied int                  `json:"actual_occupied"`
	State          models.TripDateState `json:"state"`
	Drifted        bool                 `json:"drifted"`
	Corrected      bool                 `json:"corrected"`
	Contributing   []models.Reservation `json:"contributing,omitempty"`
}

// SyncReport summarizes a reconciliation sweep
type SyncReport struct {
	Checked   int           `json:"checked"`
	Corrected int           `json:"corrected"`
	Skipped   int           `json:"skipped"`
	Drifts    []DriftReport `json:"drifts,omitempty"`
}

// Diagnose reports a trip date's drift without correcting it
func (s *ReconciliationService) Diagnose(tripDateID uuid.UUID) (*DriftReport, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	td, err := s.tripDates.LockForUpdate(tx, tripDateID)
	if err != nil {
		return nil, err
	}
	actual, err := s.reservations.ActiveQuantitySum(tx, tripDateID)
	if err != nil {
		return nil, err
	}
	contributing, err := s.reservations.ListByTripDateTx(tx, tripDateID)
	if err != nil {
		return nil, err
	}

	return &DriftReport{
		TripDateID:     tripDateID,
		StoredOccupied: td.CapacityOccupied,
		ActualOccupied: actual,
		State:          td.State,
		Drifted:        td.CapacityOccupied != actual,
		Contributing:   contributing,
	}, nil
}

// SyncOne recomputes one trip date's occupancy and overwrites the counter if
// it drifted. Runs in its own transaction under the row lock.
func (s *ReconciliationService) SyncOne(tripDateID uuid.UUID) (*DriftReport, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	td, err := s.tripDates.LockForUpdate(tx, tripDateID)
	if err != nil {
		return nil, err
	}
	actual, err := s.reservations.ActiveQuantitySum(tx, tripDateID)
	if err != nil {
		return nil, err
	}

	report := &DriftReport{
		TripDateID:     tripDateID,
		StoredOccupied: td.CapacityOccupied,
		ActualOccupied: actual,
		State:          td.State,
		Drifted:        td.CapacityOccupied != actual,
	}
	if !report.Drifted {
		return report, nil
	}

	td.CapacityOccupied = actual
	td.State = td.StateForOccupancy(actual)
	if err := s.tripDates.UpdateOccupancy(tx, td); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit correction: %w", err)
	}

	report.Corrected = true
	report.State = td.State
	s.logger.WithFields(logrus.Fields{
		"trip_date_id": tripDateID,
		"stored":       report.StoredOccupied,
		"actual":       actual,
	}).Warn("Corrected occupancy drift")
	return report, nil
}

// SyncAll sweeps every active trip date. Dates locked by live bookings are
// skipped rather than waited on; the next sweep picks them up.
func (s *ReconciliationService) SyncAll(ctx context.Context) (*SyncReport, error) {
	ids, err := s.tripDates.ListIDs()
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		drift, err := s.SyncOne(id)
		if err != nil {
			if errors.Is(err, models.ErrConcurrencyConflict) {
				report.Skipped++
				continue
			}
			s.logger.WithError(err).WithField("trip_date_id", id).Error("Reconciliation failed for trip date")
			report.Skipped++
			continue
		}

		report.Checked++
		if drift.Drifted {
			report.Corrected++
			report.Drifts = append(report.Drifts, *drift)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrected": report.Corrected,
		"skipped":   report.Skipped,
	}).Info("Inventory reconciliation sweep finished")
	return report, nil
}
