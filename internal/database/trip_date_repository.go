package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rutaviva/booking-backend/internal/models"
)

// TripDateRepository handles trip date inventory database operations
type TripDateRepository struct {
	db *sqlx.DB
}

// NewTripDateRepository creates a new TripDateRepository
func NewTripDateRepository(db *sqlx.DB) *TripDateRepository {
	return &TripDateRepository{db: db}
}

const tripDateColumns = `
	td.id, td.trip_id, td.starts_at, td.ends_at,
	td.capacity_total, td.capacity_occupied, td.state, td.price_override,
	t.name AS trip_name, t.base_price, t.max_participants,
	td.created_at, td.updated_at`

// GetByID retrieves a trip date joined with its parent trip
func (r *TripDateRepository) GetByID(id uuid.UUID) (*models.TripDate, error) {
	var td models.TripDate

	query := `
		SELECT ` + tripDateColumns + `
		FROM trip_dates td
		JOIN trips t ON t.id = td.trip_id
		WHERE td.id = $1`

	if err := r.db.Get(&td, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trip date: %w", err)
	}
	return &td, nil
}

// LockForUpdate acquires the row lock for a trip date inside a transaction.
// NOWAIT makes lock contention fail fast; pq error 55P03 (lock_not_available)
// is surfaced as ErrConcurrencyConflict so callers can reject with a retry
// hint instead of queueing behind a long writer.
func (r *TripDateRepository) LockForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.TripDate, error) {
	var td models.TripDate

	query := `
		SELECT ` + tripDateColumns + `
		FROM trip_dates td
		JOIN trips t ON t.id = td.trip_id
		WHERE td.id = $1
		FOR UPDATE OF td NOWAIT`

	if err := tx.Get(&td, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
			return nil, models.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to lock trip date: %w", err)
	}
	return &td, nil
}

// UpdateOccupancy writes back the ledger fields under the lock held by tx
func (r *TripDateRepository) UpdateOccupancy(tx *sqlx.Tx, td *models.TripDate) error {
	query := `
		UPDATE trip_dates
		SET capacity_occupied = $1, state = $2, updated_at = NOW()
		WHERE id = $3`

	result, err := tx.Exec(query, td.CapacityOccupied, td.State, td.ID)
	if err != nil {
		return fmt.Errorf("failed to update trip date occupancy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check trip date update: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListIDs returns the ids of all non-cancelled trip dates, for reconciliation sweeps
func (r *TripDateRepository) ListIDs() ([]uuid.UUID, error) {
	var ids []uuid.UUID

	query := `
		SELECT id FROM trip_dates
		WHERE state != 'cancelled'
		ORDER BY starts_at`

	if err := r.db.Select(&ids, query); err != nil {
		return nil, fmt.Errorf("failed to list trip dates: %w", err)
	}
	return ids, nil
}

// ListUpcoming returns upcoming departures for a trip, for availability listings
func (r *TripDateRepository) ListUpcoming(tripID uuid.UUID) ([]models.TripDate, error) {
	var dates []models.TripDate

	query := `
		SELECT ` + tripDateColumns + `
		FROM trip_dates td
		JOIN trips t ON t.id = td.trip_id
		WHERE td.trip_id = $1
		  AND td.state != 'cancelled'
		  AND td.starts_at > NOW()
		ORDER BY td.starts_at`

	if err := r.db.Select(&dates, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to list upcoming trip dates: %w", err)
	}
	return dates, nil
}
