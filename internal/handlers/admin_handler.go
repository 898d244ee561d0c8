package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/middleware"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes the administrative booking endpoints
type AdminHandler struct {
	booking        *services.BookingService
	reconciliation *services.ReconciliationService
	audit          *services.AuditService
	audits         *database.BookingAuditRepository
	logger         *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	booking *services.BookingService,
	reconciliation *services.ReconciliationService,
	audit *services.AuditService,
	audits *database.BookingAuditRepository,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		booking:        booking,
		reconciliation: reconciliation,
		audit:          audit,
		audits:         audits,
		logger:         logger,
	}
}

// SetReservationStatus handles PUT /api/v1/admin/reservations/:id/status
func (h *AdminHandler) SetReservationStatus(c *gin.Context) {
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

	var req models.SetReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	target, err := models.ParseReservationState(req.State)
	if err != nil {
		respondError(c, err)
		return
	}

	reservation, err := h.booking.SetReservationStatus(c.Request.Context(), id, target, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Record(c, models.AuditStatusOverride, "reservation", &reservation.ID, &user.UserID,
		fmt.Sprintf("state=%s", target))

	c.JSON(http.StatusOK, gin.H{"reservation": reservation})
}

// DiagnoseTripDate handles GET /api/v1/admin/trip-dates/:id/diagnose
func (h *AdminHandler) DiagnoseTripDate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip date id"})
		return
	}

	report, err := h.reconciliation.Diagnose(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Reconcile handles POST /api/v1/admin/reconcile. With a trip_date_id query
// parameter only that date is repaired, otherwise the full sweep runs.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	user := middleware.GetUserContext(c)

	if raw := c.Query("trip_date_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip date id"})
			return
		}
		report, err := h.reconciliation.SyncOne(id)
		if err != nil {
			respondError(c, err)
			return
		}
		h.recordReconcile(c, user, fmt.Sprintf("trip_date=%s corrected=%t", id, report.Corrected))
		c.JSON(http.StatusOK, report)
		return
	}

	report, err := h.reconciliation.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	h.recordReconcile(c, user, fmt.Sprintf("checked=%d corrected=%d", report.Checked, report.Corrected))
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) recordReconcile(c *gin.Context, user *middleware.UserContext, detail string) {
	var userID *uuid.UUID
	if user != nil {
		userID = &user.UserID
	}
	h.audit.Record(c, models.AuditReconcileRun, "trip_date", nil, userID, detail)
}

// AuditTrail handles GET /api/v1/admin/audits/:entityType/:id
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	entityType := c.Param("entityType")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	entries, err := h.audits.ListByEntity(entityType, id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": entries, "count": len(entries)})
}
