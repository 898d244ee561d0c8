package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState represents one settlement attempt's state
type PaymentState string

const (
	PaymentPending    PaymentState = "pending"
	PaymentProcessing PaymentState = "processing"
	PaymentApproved   PaymentState = "approved"
	PaymentRejected   PaymentState = "rejected"
	PaymentCancelled  PaymentState = "cancelled"
	PaymentRefunded   PaymentState = "refunded"
)

// Payment is one settlement attempt against a purchase. A purchase may
// accumulate several attempts, but only one can reach approved.
type Payment struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	PurchaseID        uuid.UUID    `json:"purchase_id" db:"purchase_id"`
	Amount            float64      `json:"amount" db:"amount"`
	State             PaymentState `json:"state" db:"state"`
	Method            *string      `json:"method,omitempty" db:"method"`
	ExternalPaymentID *string      `json:"external_payment_id,omitempty" db:"external_payment_id"`
	ApprovedAt        *time.Time   `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// GatewayStatus is the authoritative payment status reported by the gateway.
type GatewayStatus string

const (
	GatewayApproved   GatewayStatus = "approved"
	GatewayPending    GatewayStatus = "pending"
	GatewayInProcess  GatewayStatus = "in_process"
	GatewayRejected   GatewayStatus = "rejected"
	GatewayCancelled  GatewayStatus = "cancelled"
	GatewayRefunded   GatewayStatus = "refunded"
	GatewayChargeback GatewayStatus = "charged_back"
)

// SettlementOutcome is the internal state set a gateway status maps onto.
type SettlementOutcome struct {
	Payment      PaymentState
	Purchase     PurchaseState
	Reservation  ReservationState
	ReleaseSeats bool
}

// MapGatewayStatus translates a gateway status into the internal states it
// drives. Applying the same outcome twice must be a no-op; the settlement
// processor checks current state before acting.
func MapGatewayStatus(status GatewayStatus) (SettlementOutcome, bool) {
	switch status {
	case GatewayApproved:
		return SettlementOutcome{PaymentApproved, PurchasePaid, ReservationConfirmed, false}, true
	case GatewayPending, GatewayInProcess:
		return SettlementOutcome{PaymentProcessing, PurchasePending, ReservationPending, false}, true
	case GatewayRejected, GatewayCancelled:
		return SettlementOutcome{PaymentRejected, PurchaseCancelled, ReservationCancelled, true}, true
	case GatewayRefunded, GatewayChargeback:
		return SettlementOutcome{PaymentRefunded, PurchaseRefunded, ReservationCancelled, true}, true
	}
	return SettlementOutcome{}, false
}

// ProcessPaymentRequest is the payload for direct payment processing.
type ProcessPaymentRequest struct {
	Method string      `json:"method" binding:"required"`
	Card   CardDetails `json:"card"`
}

// CardDetails carries the simulated card fields sent to the gateway.
type CardDetails struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
}
