package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit action names recorded for booking-flow operations
const (
	AuditReservationCreated = "reservation_created"
	AuditReservationCancel  = "reservation_cancelled"
	AuditStatusOverride     = "reservation_status_override"
	AuditPaymentProcessed   = "payment_processed"
	AuditWebhookReceived    = "payment_webhook"
	AuditReconcileRun       = "inventory_reconciled"
	AuditSettlementAnomaly  = "settlement_anomaly"
)

// BookingAudit is an append-only record of a booking-flow action. Audits are
// best effort and never block the operation they describe.
type BookingAudit struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Action     string     `json:"action" db:"action"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	Detail     *string    `json:"detail,omitempty" db:"detail"`
	IPAddress  *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string    `json:"user_agent,omitempty" db:"user_agent"`
	DeviceOS   *string    `json:"device_os,omitempty" db:"device_os"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
