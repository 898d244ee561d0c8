package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseState represents the settlement state of a purchase
type PurchaseState string

const (
	PurchasePending   PurchaseState = "pending"
	PurchasePaid      PurchaseState = "paid"
	PurchaseCancelled PurchaseState = "cancelled"
	PurchaseRefunded  PurchaseState = "refunded"
)

// Purchase is the checkout-level aggregate grouping one or more reservations
// created together. It is the unit a payment settles against.
type Purchase struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Reference   string        `json:"reference" db:"reference"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	TotalAmount float64       `json:"total_amount" db:"total_amount"`
	State       PurchaseState `json:"state" db:"state"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// IsSettled reports whether the purchase reached a terminal settlement state.
func (p *Purchase) IsSettled() bool {
	return p.State != PurchasePending
}
