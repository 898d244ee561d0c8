package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// errStaleOutcome marks a gateway outcome that arrived after the purchase
// reached a terminal state it must not leave. The transaction rolls back and
// the webhook is acknowledged without effect.
var errStaleOutcome = errors.New("stale gateway outcome")

// SettlementService applies payment outcomes to purchases, their
// reservations and the seat ledger. The same mapping runs for direct charge
// results and webhook notifications, and it is idempotent: replaying an
// outcome changes nothing.
type SettlementService struct {
	db           *sqlx.DB
	purchases    *database.PurchaseRepository
	reservations *database.ReservationRepository
	payments     *database.PaymentRepository
	inventory    *InventoryService
	gateway      *GatewayService
	notifier     *NotifierService
	logger       *logrus.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	db *sqlx.DB,
	purchases *database.PurchaseRepository,
	reservations *database.ReservationRepository,
	payments *database.PaymentRepository,
	inventory *InventoryService,
	gateway *GatewayService,
	notifier *NotifierService,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		db:           db,
		purchases:    purchases,
		reservations: reservations,
		payments:     payments,
		inventory:    inventory,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger,
	}
}

// ProcessPayment charges the purchase total against a card and applies the
// gateway's answer. A card decline records a rejected attempt and leaves the
// purchase pending so the user can retry with another card; cancellation of
// the booking only ever comes through the webhook mapping.
func (s *SettlementService) ProcessPayment(ctx context.Context, userID, purchaseID uuid.UUID, req *models.ProcessPaymentRequest) (*models.Payment, error) {
	purchase, err := s.purchases.GetByID(purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, models.ErrForbidden
	}
	if purchase.IsSettled() {
		return nil, models.ErrAlreadySettled
	}

	result, chargeErr := s.gateway.Charge(ctx, purchase, req.Card)
	if chargeErr != nil {
		if isCardDecline(chargeErr) {
			s.recordDeclinedAttempt(purchase, req.Method, chargeErr)
		}
		return nil, chargeErr
	}

	outcome, ok := models.MapGatewayStatus(result.Status)
	if !ok {
		s.logger.WithField("status", result.Status).Error("Unknown gateway status on charge")
		return nil, models.ErrExternalGateway
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment := &models.Payment{
		PurchaseID:        purchase.ID,
		Amount:            purchase.TotalAmount,
		State:             models.PaymentPending,
		Method:            &req.Method,
		ExternalPaymentID: &result.ExternalID,
	}
	if err := s.payments.Create(tx, payment); err != nil {
		return nil, err
	}

	changed, err := s.applyOutcome(tx, purchase.ID, payment, outcome, true)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	if changed {
		s.publishOutcome(ctx, purchase, outcome)
	}
	return payment, nil
}

// WebhookNotification is the gateway's asynchronous status message
type WebhookNotification struct {
	ExternalPaymentID string               `json:"payment_id"`
	PurchaseID        string               `json:"purchase_id,omitempty"`
	Status            models.GatewayStatus `json:"status"`
}

// HandleGatewayCallback applies a webhook notification. Unknown payments and
// statuses are logged and swallowed; the handler acknowledges regardless so
// the gateway stops retrying.
func (s *SettlementService) HandleGatewayCallback(ctx context.Context, notif WebhookNotification) error {
	outcome, ok := models.MapGatewayStatus(notif.Status)
	if !ok {
		s.logger.WithField("status", notif.Status).Warn("Ignoring unknown gateway status")
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := s.resolvePayment(tx, notif)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.WithFields(logrus.Fields{
				"external_payment_id": notif.ExternalPaymentID,
				"purchase_id":         notif.PurchaseID,
			}).Warn("Webhook for unknown payment, ignoring")
			return nil
		}
		return err
	}

	if payment.ExternalPaymentID == nil && notif.ExternalPaymentID != "" {
		payment.ExternalPaymentID = &notif.ExternalPaymentID
	}

	purchase, err := s.purchases.GetByID(payment.PurchaseID)
	if err != nil {
		return err
	}

	changed, err := s.applyOutcome(tx, payment.PurchaseID, payment, outcome, false)
	if err != nil {
		if errors.Is(err, errStaleOutcome) {
			return nil
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	if changed {
		s.publishOutcome(ctx, purchase, outcome)
	}
	return nil
}

// resolvePayment finds the payment a webhook refers to, first by the
// gateway's id, then by the purchase's latest open attempt
func (s *SettlementService) resolvePayment(tx *sqlx.Tx, notif WebhookNotification) (*models.Payment, error) {
	if notif.ExternalPaymentID != "" {
		payment, err := s.payments.GetByExternalID(tx, notif.ExternalPaymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	if notif.PurchaseID != "" {
		purchaseID, err := uuid.Parse(notif.PurchaseID)
		if err != nil {
			return nil, models.ErrNotFound
		}
		return s.payments.GetOpenByPurchase(tx, purchaseID)
	}

	return nil, models.ErrNotFound
}

// applyOutcome is the idempotent settlement core. Lock order: trip date rows
// first (only when seats are released), then the purchase row. Seat release
// skips reservations that no longer hold seats, so replays are no-ops. The
// returned flag reports whether the purchase actually changed state; callers
// publish notifications only then, so replays stay silent downstream.
func (s *SettlementService) applyOutcome(tx *sqlx.Tx, purchaseID uuid.UUID, payment *models.Payment, outcome models.SettlementOutcome, direct bool) (bool, error) {
	resList, err := s.reservations.GetByPurchaseIDTx(tx, purchaseID)
	if err != nil {
		return false, err
	}

	if outcome.ReleaseSeats {
		if err := s.inventory.ReleaseForReservations(tx, resList); err != nil {
			return false, err
		}
	}

	purchase, err := s.purchases.GetForUpdate(tx, purchaseID)
	if err != nil {
		return false, err
	}

	// An approval landing on an already-cancelled purchase means money was
	// taken for a booking that no longer exists. Record the payment, keep
	// the cancellation, flag for manual review.
	if outcome.Purchase == models.PurchasePaid &&
		(purchase.State == models.PurchaseCancelled || purchase.State == models.PurchaseRefunded) {
		s.logger.WithFields(logrus.Fields{
			"purchase_id": purchase.ID,
			"payment_id":  payment.ID,
			"state":       purchase.State,
		}).Error("Approved payment on settled purchase, manual review required")

		now := time.Now()
		payment.State = models.PaymentApproved
		payment.ApprovedAt = &now
		return false, s.payments.Update(tx, payment)
	}

	// The pre-charge settled check runs without a lock; re-check here so a
	// concurrent charge on the same purchase cannot settle twice. The loser
	// rolls back, taking its payment row with it.
	if direct && purchase.IsSettled() {
		return false, models.ErrAlreadySettled
	}

	// Settled purchases only ever move forward to refunded. Anything else is
	// a delayed or out-of-order gateway notification; roll it back whole,
	// including any seat release taken above.
	if purchase.State != outcome.Purchase && purchase.IsSettled() &&
		outcome.Purchase != models.PurchaseRefunded {
		s.logger.WithFields(logrus.Fields{
			"purchase_id":    purchase.ID,
			"payment_id":     payment.ID,
			"purchase_state": purchase.State,
			"outcome":        outcome.Purchase,
		}).Error("Stale gateway outcome on settled purchase, ignoring")
		return false, errStaleOutcome
	}

	payment.State = outcome.Payment
	if outcome.Payment == models.PaymentApproved && payment.ApprovedAt == nil {
		now := time.Now()
		payment.ApprovedAt = &now
	}
	if err := s.payments.Update(tx, payment); err != nil {
		return false, err
	}

	changed := purchase.State != outcome.Purchase
	if changed {
		if err := s.purchases.UpdateState(tx, purchaseID, outcome.Purchase); err != nil {
			return false, err
		}
	}

	for i := range resList {
		res := &resList[i]
		switch outcome.Reservation {
		case models.ReservationConfirmed:
			if res.State == models.ReservationPending {
				if err := s.reservations.UpdateState(tx, res.ID, models.ReservationConfirmed, nil); err != nil {
					return false, err
				}
			}
		case models.ReservationCancelled:
			if res.State == models.ReservationPending || res.State == models.ReservationConfirmed {
				if err := s.reservations.UpdateState(tx, res.ID, models.ReservationCancelled, nil); err != nil {
					return false, err
				}
			}
		}
	}

	return changed, nil
}

func (s *SettlementService) publishOutcome(ctx context.Context, purchase *models.Purchase, outcome models.SettlementOutcome) {
	switch outcome.Purchase {
	case models.PurchasePaid:
		s.notifier.Publish(ctx, BookingEvent{
			Type:       EventBookingSettled,
			PurchaseID: purchase.ID.String(),
			UserID:     purchase.UserID.String(),
			Amount:     purchase.TotalAmount,
		})
	case models.PurchaseCancelled, models.PurchaseRefunded:
		s.notifier.Publish(ctx, BookingEvent{
			Type:       EventBookingCancelled,
			PurchaseID: purchase.ID.String(),
			UserID:     purchase.UserID.String(),
			Amount:     purchase.TotalAmount,
		})
	}
}

// recordDeclinedAttempt persists a rejected payment row so retries leave an
// audit trail. Failures here are logged only.
func (s *SettlementService) recordDeclinedAttempt(purchase *models.Purchase, method string, declineErr error) {
	tx, err := s.db.Beginx()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record declined payment")
		return
	}
	defer tx.Rollback()

	payment := &models.Payment{
		PurchaseID: purchase.ID,
		Amount:     purchase.TotalAmount,
		State:      models.PaymentRejected,
		Method:     &method,
	}
	if err := s.payments.Create(tx, payment); err != nil {
		s.logger.WithError(err).Warn("Failed to record declined payment")
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Warn("Failed to record declined payment")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"purchase_id": purchase.ID,
		"reason":      declineErr.Error(),
	}).Info("Card declined, purchase stays pending")
}

func isCardDecline(err error) bool {
	return errors.Is(err, models.ErrInvalidCard) ||
		errors.Is(err, models.ErrInsufficientFunds) ||
		errors.Is(err, models.ErrExpiredCard)
}

// ListPayments retrieves the payment attempts for a purchase with an
// ownership check
func (s *SettlementService) ListPayments(userID, purchaseID uuid.UUID, isAdmin bool) ([]models.Payment, error) {
	purchase, err := s.purchases.GetByID(purchaseID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && purchase.UserID != userID {
		return nil, models.ErrForbidden
	}
	return s.payments.ListByPurchase(purchaseID)
}
