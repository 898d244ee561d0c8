package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/config"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var purchaseTestColumns = []string{
	"id", "reference", "user_id", "total_amount", "state", "created_at", "updated_at",
}

var paymentTestColumns = []string{
	"id", "purchase_id", "amount", "state", "method", "external_payment_id",
	"approved_at", "created_at", "updated_at",
}

func purchaseRow(id, userID uuid.UUID, total float64, state string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(purchaseTestColumns).AddRow(
		id, "PUR-20260829-ABCDEF", userID, total, state, now, now,
	)
}

func paymentRow(id, purchaseID uuid.UUID, amount float64, state, externalID string) *sqlmock.Rows {
	now := time.Now()
	method := "card"
	return sqlmock.NewRows(paymentTestColumns).AddRow(
		id, purchaseID, amount, state, method, externalID, nil, now, now,
	)
}

func newSettlementServiceTest(t *testing.T) (*SettlementService, sqlmock.Sqlmock, func()) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDb, "sqlmock")
	logger := testLogger()

	tripDates := database.NewTripDateRepository(db)
	purchases := database.NewPurchaseRepository(db)
	reservations := database.NewReservationRepository(db)
	payments := database.NewPaymentRepository(db)
	holds := NewHoldCacheService(nil, time.Minute, logger)
	notifier := NewNotifierService("", "booking_events", logger)
	inventory := NewInventoryService(tripDates, reservations, holds, logger)
	gateway := NewGatewayService(config.PaymentConfig{Timeout: 5 * time.Second}, logger)

	svc := NewSettlementService(db, purchases, reservations, payments, inventory, gateway, notifier, logger)
	return svc, mock, func() { mockDb.Close() }
}

func validCard() models.CardDetails {
	return models.CardDetails{
		Number:     "4242424242424242",
		HolderName: "Ana Reyes",
		ExpMonth:   12,
		ExpYear:    2030,
		CVV:        "123",
	}
}

func TestProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Approved Confirms Booking", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		reservationID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE purchases`).
			WithArgs(models.PurchasePaid, purchaseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(models.ReservationConfirmed, nil, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req := &models.ProcessPaymentRequest{Method: "card", Card: validCard()}
		payment, err := svc.ProcessPayment(ctx, userID, purchaseID, req)
		require.NoError(t, err)

		assert.Equal(t, models.PaymentApproved, payment.State)
		assert.NotNil(t, payment.ApprovedAt)
		assert.Equal(t, 240.0, payment.Amount)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insufficient Funds Leaves Purchase Pending", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		card := validCard()
		card.Number = "4000000000000002"
		req := &models.ProcessPaymentRequest{Method: "card", Card: card}

		_, err := svc.ProcessPayment(ctx, userID, purchaseID, req)
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Expired Card Rejected Without Gateway Call", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		card := validCard()
		card.ExpYear = 2020
		req := &models.ProcessPaymentRequest{Method: "card", Card: card}

		_, err := svc.ProcessPayment(ctx, userID, purchaseID, req)
		assert.ErrorIs(t, err, models.ErrExpiredCard)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Settled", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))

		req := &models.ProcessPaymentRequest{Method: "card", Card: validCard()}
		_, err := svc.ProcessPayment(ctx, userID, purchaseID, req)
		assert.ErrorIs(t, err, models.ErrAlreadySettled)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent Settlement Loses Under Lock", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		reservationID := uuid.New()

		// The unlocked pre-check still sees pending; a concurrent charge
		// settles the purchase before this one reaches the row lock.
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectRollback()

		req := &models.ProcessPaymentRequest{Method: "card", Card: validCard()}
		_, err := svc.ProcessPayment(ctx, userID, purchaseID, req)
		assert.ErrorIs(t, err, models.ErrAlreadySettled)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Foreign Purchase Forbidden", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		purchaseID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, uuid.New(), 240.0, "pending"))

		req := &models.ProcessPaymentRequest{Method: "card", Card: validCard()}
		_, err := svc.ProcessPayment(ctx, uuid.New(), purchaseID, req)
		assert.ErrorIs(t, err, models.ErrForbidden)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHandleGatewayCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("Approved Webhook Confirms Booking", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_123").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "processing", "gw_123"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE purchases`).
			WithArgs(models.PurchasePaid, purchaseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(models.ReservationConfirmed, nil, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_123",
			Status:            models.GatewayApproved,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replay Is A No-Op On States", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_123").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "approved", "gw_123"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_123",
			Status:            models.GatewayApproved,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stale Pending After Approval Ignored", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_late").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "approved", "gw_late"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectRollback()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_late",
			Status:            models.GatewayInProcess,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Stale Rejection After Approval Ignored", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()
		tripDateID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_late2").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "approved", "gw_late2"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, tripDateID, userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(tripDateID).
			WillReturnRows(tripDateRow(tripDateID, 10, 6, "available"))
		mock.ExpectExec(`UPDATE trip_dates`).
			WithArgs(4, models.TripDateAvailable, tripDateID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectRollback()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_late2",
			Status:            models.GatewayRejected,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Refund After Approval Applies", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()
		tripDateID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_refund").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "approved", "gw_refund"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, tripDateID, userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(tripDateID).
			WillReturnRows(tripDateRow(tripDateID, 10, 6, "available"))
		mock.ExpectExec(`UPDATE trip_dates`).
			WithArgs(4, models.TripDateAvailable, tripDateID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE purchases`).
			WithArgs(models.PurchaseRefunded, purchaseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(models.ReservationCancelled, nil, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_refund",
			Status:            models.GatewayRefunded,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejected Releases Seats And Cancels", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()
		tripDateID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_456").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "processing", "gw_456"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, tripDateID, userID, 2, "pending"))
		mock.ExpectQuery(`SELECT (.+) FOR UPDATE OF td NOWAIT`).
			WithArgs(tripDateID).
			WillReturnRows(tripDateRow(tripDateID, 10, 6, "available"))
		mock.ExpectExec(`UPDATE trip_dates`).
			WithArgs(4, models.TripDateAvailable, tripDateID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE purchases`).
			WithArgs(models.PurchaseCancelled, purchaseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(models.ReservationCancelled, nil, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_456",
			Status:            models.GatewayRejected,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Approval After Cancellation Never Reopens", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		paymentID := uuid.New()
		reservationID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_789").
			WillReturnRows(paymentRow(paymentID, purchaseID, 240.0, "processing", "gw_789"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases WHERE id`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "cancelled"))
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "cancelled"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "cancelled"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_789",
			Status:            models.GatewayApproved,
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Payment Acknowledged", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE external_payment_id`).
			WithArgs("gw_missing").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns))
		mock.ExpectRollback()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_missing",
			Status:            models.GatewayApproved,
		})
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Status Ignored", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		err := svc.HandleGatewayCallback(ctx, WebhookNotification{
			ExternalPaymentID: "gw_123",
			Status:            "authorized",
		})
		assert.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApplyOutcomeChangeTracking(t *testing.T) {
	outcome, ok := models.MapGatewayStatus(models.GatewayApproved)
	require.True(t, ok)

	t.Run("First Approval Reports A Change", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		reservationID := uuid.New()
		payment := &models.Payment{ID: uuid.New(), PurchaseID: purchaseID, Amount: 240.0, State: models.PaymentProcessing}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "pending"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "pending"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE purchases`).
			WithArgs(models.PurchasePaid, purchaseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(models.ReservationConfirmed, nil, reservationID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		tx, err := svc.db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		changed, err := svc.applyOutcome(tx, purchaseID, payment, outcome, false)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Replay Reports No Change", func(t *testing.T) {
		svc, mock, cleanup := newSettlementServiceTest(t)
		defer cleanup()

		userID := uuid.New()
		purchaseID := uuid.New()
		reservationID := uuid.New()
		approvedAt := time.Now()
		payment := &models.Payment{
			ID: uuid.New(), PurchaseID: purchaseID, Amount: 240.0,
			State: models.PaymentApproved, ApprovedAt: &approvedAt,
		}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM reservations`).
			WithArgs(purchaseID).
			WillReturnRows(reservationRow(reservationID, purchaseID, uuid.New(), userID, 2, "confirmed"))
		mock.ExpectQuery(`SELECT (.+) FROM purchases (.+) FOR UPDATE`).
			WithArgs(purchaseID).
			WillReturnRows(purchaseRow(purchaseID, userID, 240.0, "paid"))
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		tx, err := svc.db.Beginx()
		require.NoError(t, err)
		defer tx.Rollback()

		changed, err := svc.applyOutcome(tx, purchaseID, payment, outcome, false)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}
