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

// PurchaseRepository handles purchase database operations
type PurchaseRepository struct {
	db *sqlx.DB
}

// NewPurchaseRepository creates a new PurchaseRepository
func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts a new purchase inside a transaction
func (r *PurchaseRepository) Create(tx *sqlx.Tx, purchase *models.Purchase) error {
	purchase.ID = uuid.New()
	purchase.CreatedAt = time.Now()
	purchase.UpdatedAt = purchase.CreatedAt

	query := `
		INSERT INTO purchases (id, reference, user_id, total_amount, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(query,
		purchase.ID, purchase.Reference, purchase.UserID,
		purchase.TotalAmount, purchase.State,
		purchase.CreatedAt, purchase.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// GetByID retrieves a purchase by id
func (r *PurchaseRepository) GetByID(id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase

	query := `
		SELECT id, reference, user_id, total_amount, state, created_at, updated_at
		FROM purchases WHERE id = $1`

	if err := r.db.Get(&purchase, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &purchase, nil
}

// GetForUpdate locks a purchase row inside a transaction. Taken after the
// trip date locks, never before.
func (r *PurchaseRepository) GetForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase

	query := `
		SELECT id, reference, user_id, total_amount, state, created_at, updated_at
		FROM purchases WHERE id = $1
		FOR UPDATE`

	if err := tx.Get(&purchase, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock purchase: %w", err)
	}
	return &purchase, nil
}

// UpdateState writes a purchase state change inside a transaction
func (r *PurchaseRepository) UpdateState(tx *sqlx.Tx, id uuid.UUID, state models.PurchaseState) error {
	query := `
		UPDATE purchases
		SET state = $1, updated_at = NOW()
		WHERE id = $2`

	result, err := tx.Exec(query, state, id)
	if err != nil {
		return fmt.Errorf("failed to update purchase state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check purchase update: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
