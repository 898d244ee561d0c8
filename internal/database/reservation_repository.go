package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/models"
)

// ReservationRepository handles reservation database operations
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	id, reference, purchase_id, trip_date_id, user_id,
	quantity, unit_price, subtotal, state, notes, created_at, updated_at`

// Create inserts a new reservation inside a transaction
func (r *ReservationRepository) Create(tx *sqlx.Tx, res *models.Reservation) error {
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt

	query := `
		INSERT INTO reservations (
			id, reference, purchase_id, trip_date_id, user_id,
			quantity, unit_price, subtotal, state, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(query,
		res.ID, res.Reference, res.PurchaseID, res.TripDateID, res.UserID,
		res.Quantity, res.UnitPrice, res.Subtotal, res.State, res.Notes,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation by id
func (r *ReservationRepository) GetByID(id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	if err := r.db.Get(&res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// GetByIDTx retrieves a reservation by id inside a transaction
func (r *ReservationRepository) GetByIDTx(tx *sqlx.Tx, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	if err := tx.Get(&res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// GetByPurchaseID retrieves all reservations belonging to a purchase
func (r *ReservationRepository) GetByPurchaseID(purchaseID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE purchase_id = $1
		ORDER BY created_at`

	if err := r.db.Select(&list, query, purchaseID); err != nil {
		return nil, fmt.Errorf("failed to get reservations for purchase: %w", err)
	}
	return list, nil
}

// GetByPurchaseIDTx is GetByPurchaseID scoped to a transaction
func (r *ReservationRepository) GetByPurchaseIDTx(tx *sqlx.Tx, purchaseID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE purchase_id = $1
		ORDER BY created_at`

	if err := tx.Select(&list, query, purchaseID); err != nil {
		return nil, fmt.Errorf("failed to get reservations for purchase: %w", err)
	}
	return list, nil
}

// ActiveQuantitySum recomputes true occupancy for a trip date from the
// reservation rows. Runs inside the reconciliation transaction so it sees a
// consistent snapshot while the trip date row is locked.
func (r *ReservationRepository) ActiveQuantitySum(tx *sqlx.Tx, tripDateID uuid.UUID) (int, error) {
	var sum int

	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM reservations
		WHERE trip_date_id = $1 AND state != 'cancelled'`

	if err := tx.Get(&sum, query, tripDateID); err != nil {
		return 0, fmt.Errorf("failed to sum active reservations: %w", err)
	}
	return sum, nil
}

// ListByTripDateTx retrieves the reservations contributing to a trip date's
// occupancy (everything not cancelled), inside a transaction
func (r *ReservationRepository) ListByTripDateTx(tx *sqlx.Tx, tripDateID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE trip_date_id = $1 AND state != 'cancelled'
		ORDER BY created_at`

	if err := tx.Select(&list, query, tripDateID); err != nil {
		return nil, fmt.Errorf("failed to list reservations for trip date: %w", err)
	}
	return list, nil
}

// UpdateState writes a reservation state change inside a transaction
func (r *ReservationRepository) UpdateState(tx *sqlx.Tx, id uuid.UUID, state models.ReservationState, notes *string) error {
	query := `
		UPDATE reservations
		SET state = $1, notes = COALESCE($2, notes), updated_at = NOW()
		WHERE id = $3`

	result, err := tx.Exec(query, state, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update reservation state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reservation update: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByUser retrieves a user's reservations, newest first
func (r *ReservationRepository) ListByUser(userID uuid.UUID, limit, offset int) ([]models.Reservation, error) {
	var list []models.Reservation

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&list, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return list, nil
}

// GetDetail retrieves a reservation with its purchase and trip date context
func (r *ReservationRepository) GetDetail(id uuid.UUID) (*models.ReservationDetail, error) {
	var detail models.ReservationDetail

	query := `
		SELECT
			r.id, r.reference, r.purchase_id, r.trip_date_id, r.user_id,
			r.quantity, r.unit_price, r.subtotal, r.state, r.notes,
			r.created_at, r.updated_at,
			p.reference AS purchase_reference,
			p.state AS purchase_state,
			p.total_amount AS purchase_total,
			t.name AS trip_name,
			td.starts_at AS trip_date_starts_at,
			td.ends_at AS trip_date_ends_at
		FROM reservations r
		JOIN purchases p ON p.id = r.purchase_id
		JOIN trip_dates td ON td.id = r.trip_date_id
		JOIN trips t ON t.id = td.trip_id
		WHERE r.id = $1`

	if err := r.db.Get(&detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation detail: %w", err)
	}
	return &detail, nil
}
