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

// PaymentRepository handles payment attempt database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, purchase_id, amount, state, method, external_payment_id,
	approved_at, created_at, updated_at`

// Create inserts a new payment attempt inside a transaction
func (r *PaymentRepository) Create(tx *sqlx.Tx, payment *models.Payment) error {
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt

	query := `
		INSERT INTO payments (
			id, purchase_id, amount, state, method, external_payment_id,
			approved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(query,
		payment.ID, payment.PurchaseID, payment.Amount, payment.State,
		payment.Method, payment.ExternalPaymentID, payment.ApprovedAt,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByExternalID retrieves a payment by the gateway's id, inside a transaction
func (r *PaymentRepository) GetByExternalID(tx *sqlx.Tx, externalID string) (*models.Payment, error) {
	var payment models.Payment

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_payment_id = $1`

	if err := tx.Get(&payment, query, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment by external id: %w", err)
	}
	return &payment, nil
}

// GetOpenByPurchase retrieves the latest non-terminal payment attempt for a
// purchase, inside a transaction. Used when a webhook arrives without a known
// external id.
func (r *PaymentRepository) GetOpenByPurchase(tx *sqlx.Tx, purchaseID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE purchase_id = $1 AND state IN ('pending', 'processing')
		ORDER BY created_at DESC
		LIMIT 1`

	if err := tx.Get(&payment, query, purchaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get open payment: %w", err)
	}
	return &payment, nil
}

// Update writes the mutable payment fields inside a transaction
func (r *PaymentRepository) Update(tx *sqlx.Tx, payment *models.Payment) error {
	query := `
		UPDATE payments
		SET state = $1, external_payment_id = $2, approved_at = $3, updated_at = NOW()
		WHERE id = $4`

	result, err := tx.Exec(query, payment.State, payment.ExternalPaymentID, payment.ApprovedAt, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check payment update: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByPurchase retrieves every payment attempt for a purchase
func (r *PaymentRepository) ListByPurchase(purchaseID uuid.UUID) ([]models.Payment, error) {
	var list []models.Payment

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE purchase_id = $1
		ORDER BY created_at`

	if err := r.db.Select(&list, query, purchaseID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return list, nil
}
