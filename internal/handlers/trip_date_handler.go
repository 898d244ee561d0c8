package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/middleware"
	"github.com/rutaviva/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// TripDateHandler exposes availability reads and cart holds
type TripDateHandler struct {
	inventory *services.InventoryService
	holds     *services.HoldCacheService
	logger    *logrus.Logger
}

// NewTripDateHandler creates a new TripDateHandler
func NewTripDateHandler(inventory *services.InventoryService, holds *services.HoldCacheService, logger *logrus.Logger) *TripDateHandler {
	return &TripDateHandler{inventory: inventory, holds: holds, logger: logger}
}

// Availability handles GET /api/v1/trip-dates/:id/availability
func (h *TripDateHandler) Availability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip date id"})
		return
	}

	availability, err := h.inventory.Available(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// ListForTrip handles GET /api/v1/trips/:id/dates
func (h *TripDateHandler) ListForTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	dates, err := h.inventory.ListUpcoming(tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip_dates": dates, "count": len(dates)})
}

type placeHoldRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=20"`
}

// PlaceHold handles POST /api/v1/trip-dates/:id/holds. The hold is advisory
// only; it shapes the availability figure other shoppers see but guarantees
// nothing.
func (h *TripDateHandler) PlaceHold(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip date id"})
		return
	}

	var req placeHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be between 1 and 20"})
		return
	}

	if err := h.holds.Place(c.Request.Context(), id, user.UserID, req.Quantity); err != nil {
		h.logger.WithError(err).Warn("Failed to place cart hold")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cart holds temporarily unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"trip_date_id": id, "quantity": req.Quantity})
}

// ReleaseHold handles DELETE /api/v1/trip-dates/:id/holds
func (h *TripDateHandler) ReleaseHold(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip date id"})
		return
	}

	h.holds.Release(c.Request.Context(), id, user.UserID)
	c.Status(http.StatusNoContent)
}
