package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/middleware"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// PaymentHandler exposes payment processing and the gateway webhook
type PaymentHandler struct {
	settlement *services.SettlementService
	gateway    *services.GatewayService
	audit      *services.AuditService
	logger     *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	settlement *services.SettlementService,
	gateway *services.GatewayService,
	audit *services.AuditService,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, gateway: gateway, audit: audit, logger: logger}
}

// Process handles POST /api/v1/purchases/:id/payments
func (h *PaymentHandler) Process(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	var req models.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payment, err := h.settlement.ProcessPayment(c.Request.Context(), user.UserID, purchaseID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Record(c, models.AuditPaymentProcessed, "payment", &payment.ID, &user.UserID, string(payment.State))

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListForPurchase handles GET /api/v1/purchases/:id/payments
func (h *PaymentHandler) ListForPurchase(c *gin.Context) {
	user := middleware.GetUserContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	payments, err := h.settlement.ListPayments(user.UserID, purchaseID, user.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

// Webhook handles POST /api/v1/webhooks/payments. The gateway retries on
// non-2xx, so the handler always acknowledges; failures are logged and left
// to reconciliation.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.WithError(err).Warn("Unreadable webhook body")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if sig := c.GetHeader("X-Signature"); !h.gateway.VerifyWebhookSignature(body, sig) {
		h.logger.Warn("Webhook signature mismatch, ignoring payload")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var notif services.WebhookNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		h.logger.WithError(err).Warn("Malformed webhook payload")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.settlement.HandleGatewayCallback(c.Request.Context(), notif); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"external_payment_id": notif.ExternalPaymentID,
			"status":              notif.Status,
		}).Error("Failed to apply payment webhook")
	} else {
		h.audit.Record(c, models.AuditWebhookReceived, "payment", nil, nil, string(notif.Status))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
