package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// BookingService drives the reservation lifecycle. All writes that touch
// seat inventory go through InventoryService inside a single transaction,
// honoring the lock order: trip date row first, then purchase and
// reservation rows.
type BookingService struct {
	db           *sqlx.DB
	tripDates    *database.TripDateRepository
	purchases    *database.PurchaseRepository
	reservations *database.ReservationRepository
	inventory    *InventoryService
	holds        *HoldCacheService
	notifier     *NotifierService
	logger       *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db *sqlx.DB,
	tripDates *database.TripDateRepository,
	purchases *database.PurchaseRepository,
	reservations *database.ReservationRepository,
	inventory *InventoryService,
	holds *HoldCacheService,
	notifier *NotifierService,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:           db,
		tripDates:    tripDates,
		purchases:    purchases,
		reservations: reservations,
		inventory:    inventory,
		holds:        holds,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateReservation books qty seats on a trip date for a user, creating the
// enclosing purchase in the same transaction. On any rejection the
// transaction rolls back whole; there is no partial booking.
func (s *BookingService) CreateReservation(ctx context.Context, userID uuid.UUID, req *models.CreateReservationRequest) (*models.Reservation, *models.Purchase, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	tripDateID, _ := uuid.Parse(req.TripDateID)

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	td, err := s.inventory.Reserve(tx, tripDateID, req.Quantity)
	if err != nil {
		return nil, nil, err
	}

	unitPrice := td.UnitPrice()
	subtotal := unitPrice * float64(req.Quantity)

	purchaseRef, err := utils.GenerateReference("PUR")
	if err != nil {
		return nil, nil, err
	}
	purchase := &models.Purchase{
		Reference:   purchaseRef,
		UserID:      userID,
		TotalAmount: subtotal,
		State:       models.PurchasePending,
	}
	if err := s.purchases.Create(tx, purchase); err != nil {
		return nil, nil, err
	}

	reservationRef, err := utils.GenerateReference("RSV")
	if err != nil {
		return nil, nil, err
	}
	reservation := &models.Reservation{
		Reference:  reservationRef,
		PurchaseID: purchase.ID,
		TripDateID: tripDateID,
		UserID:     userID,
		Quantity:   req.Quantity,
		UnitPrice:  unitPrice,
		Subtotal:   subtotal,
		State:      models.ReservationPending,
		Notes:      req.Notes,
	}
	if err := s.reservations.Create(tx, reservation); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	s.holds.Release(ctx, tripDateID, userID)
	s.notifier.Publish(ctx, BookingEvent{
		Type:          EventReservationCreated,
		ReservationID: reservation.ID.String(),
		PurchaseID:    purchase.ID.String(),
		UserID:        userID.String(),
		TripDateID:    tripDateID.String(),
		Quantity:      req.Quantity,
		Amount:        subtotal,
	})

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"trip_date_id":   tripDateID,
		"quantity":       req.Quantity,
	}).Info("Reservation created")

	return reservation, purchase, nil
}

// CancelReservation cancels a user's own pending or confirmed reservation
// and returns its seats to the trip date ledger.
func (s *BookingService) CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) (*models.Reservation, error) {
	existing, err := s.reservations.GetByID(reservationID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, models.ErrForbidden
	}

	updated, err := s.transition(reservationID, existing.TripDateID, models.ReservationCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, BookingEvent{
		Type:          EventBookingCancelled,
		ReservationID: updated.ID.String(),
		PurchaseID:    updated.PurchaseID.String(),
		UserID:        userID.String(),
		TripDateID:    updated.TripDateID.String(),
		Quantity:      updated.Quantity,
	})
	return updated, nil
}

// SetReservationStatus applies an administrative state override. Legal edges
// only; a re-activation out of cancelled re-validates capacity against the
// current ledger before taking seats back.
func (s *BookingService) SetReservationStatus(ctx context.Context, reservationID uuid.UUID, target models.ReservationState, notes *string) (*models.Reservation, error) {
	existing, err := s.reservations.GetByID(reservationID)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(reservationID, existing.TripDateID, target, notes)
	if err != nil {
		return nil, err
	}

	if target == models.ReservationCancelled {
		s.notifier.Publish(ctx, BookingEvent{
			Type:          EventBookingCancelled,
			ReservationID: updated.ID.String(),
			PurchaseID:    updated.PurchaseID.String(),
			UserID:        updated.UserID.String(),
			TripDateID:    updated.TripDateID.String(),
			Quantity:      updated.Quantity,
		})
	}
	return updated, nil
}

// transition moves a reservation to target under the trip date lock. The
// reservation is re-read inside the transaction so stale pre-checks cannot
// race a concurrent settlement. Edges that touch the ledger also move the
// enclosing purchase: cancellation cancels it, re-activation reopens it for
// payment.
func (s *BookingService) transition(reservationID, tripDateID uuid.UUID, target models.ReservationState, notes *string) (*models.Reservation, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	td, err := s.tripDates.LockForUpdate(tx, tripDateID)
	if err != nil {
		return nil, err
	}

	reservation, err := s.reservations.GetByIDTx(tx, reservationID)
	if err != nil {
		return nil, err
	}

	if reservation.State == target {
		switch target {
		case models.ReservationCancelled:
			return nil, models.ErrAlreadyCancelled
		case models.ReservationCompleted:
			return nil, models.ErrAlreadyCompleted
		}
		return nil, &models.TransitionError{From: reservation.State, To: target}
	}

	if target == models.ReservationCancelled && reservation.State == models.ReservationCompleted {
		return nil, models.ErrAlreadyCompleted
	}

	effect, err := models.TransitionEffect(reservation.State, target)
	if err != nil {
		return nil, err
	}

	switch effect {
	case models.LedgerReserve:
		if err := td.CanReserve(reservation.Quantity); err != nil {
			return nil, err
		}
		td.ApplyReserve(reservation.Quantity)
		if err := s.tripDates.UpdateOccupancy(tx, td); err != nil {
			return nil, err
		}
	case models.LedgerRelease:
		td.ApplyRelease(reservation.Quantity)
		if err := s.tripDates.UpdateOccupancy(tx, td); err != nil {
			return nil, err
		}
	}

	if effect != models.LedgerNone {
		purchase, err := s.purchases.GetForUpdate(tx, reservation.PurchaseID)
		if err != nil {
			return nil, err
		}
		purchaseTarget := models.PurchasePending
		if target == models.ReservationCancelled {
			purchaseTarget = models.PurchaseCancelled
		}
		// Refunded purchases keep their state: the money already went back.
		if purchase.State != purchaseTarget && purchase.State != models.PurchaseRefunded {
			if err := s.purchases.UpdateState(tx, purchase.ID, purchaseTarget); err != nil {
				return nil, err
			}
		}
	}

	if err := s.reservations.UpdateState(tx, reservationID, target, notes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	reservation.State = target
	if notes != nil {
		reservation.Notes = notes
	}
	return reservation, nil
}

// GetReservation retrieves a reservation detail with an ownership check.
// Admins may read any reservation.
func (s *BookingService) GetReservation(userID uuid.UUID, reservationID uuid.UUID, isAdmin bool) (*models.ReservationDetail, error) {
	detail, err := s.reservations.GetDetail(reservationID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && detail.UserID != userID {
		return nil, models.ErrForbidden
	}
	return detail, nil
}

// ListUserReservations retrieves a user's reservations, newest first
func (s *BookingService) ListUserReservations(userID uuid.UUID, limit, offset int) ([]models.Reservation, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reservations.ListByUser(userID, limit, offset)
}
