package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/middleware"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ReservationHandler exposes the reservation endpoints
type ReservationHandler struct {
	booking *services.BookingService
	voucher *services.VoucherService
	audit   *services.AuditService
	logger  *logrus.Logger
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(
	booking *services.BookingService,
	voucher *services.VoucherService,
	audit *services.AuditService,
	logger *logrus.Logger,
) *ReservationHandler {
	return &ReservationHandler{booking: booking, voucher: voucher, audit: audit, logger: logger}
}

// Create handles POST /api/v1/reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	reservation, purchase, err := h.booking.CreateReservation(c.Request.Context(), user.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Record(c, models.AuditReservationCreated, "reservation", &reservation.ID, &user.UserID,
		fmt.Sprintf("quantity=%d trip_date=%s", reservation.Quantity, reservation.TripDateID))

	c.JSON(http.StatusCreated, gin.H{
		"reservation": reservation,
		"purchase":    purchase,
	})
}

// Get handles GET /api/v1/reservations/:id
func (h *ReservationHandler) Get(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	detail, err := h.booking.GetReservation(user.UserID, id, user.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// List handles GET /api/v1/reservations
func (h *ReservationHandler) List(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reservations, err := h.booking.ListUserReservations(user.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": reservations, "count": len(reservations)})
}

// Cancel handles POST /api/v1/reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	reservation, err := h.booking.CancelReservation(c.Request.Context(), user.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Record(c, models.AuditReservationCancel, "reservation", &reservation.ID, &user.UserID, "")

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// Voucher handles GET /api/v1/reservations/:id/voucher
func (h *ReservationHandler) Voucher(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	detail, err := h.booking.GetReservation(user.UserID, id, user.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	if detail.State != models.ReservationConfirmed && detail.State != models.ReservationCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "voucher available only for confirmed reservations"})
		return
	}

	pdf, err := h.voucher.Generate(detail)
	if err != nil {
		h.logger.WithError(err).Error("Voucher generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate voucher"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=voucher-%s.pdf", detail.Reference))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
