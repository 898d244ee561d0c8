package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/config"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// Test card numbers that force deterministic outcomes in sandbox mode.
// These mirror the gateway provider's documented sandbox cards.
const (
	cardInsufficientFunds = "4000000000000002"
	cardPendingReview     = "4000000000000119"
	cardGatewayError      = "4000000000000127"
)

// ChargeResult is the gateway's answer to a charge attempt
type ChargeResult struct {
	ExternalID string
	Status     models.GatewayStatus
}

// GatewayService talks to the card payment provider. With no GatewayURL
// configured it runs a local sandbox that applies the provider's documented
// test-card rules, so the settlement paths are exercisable offline.
type GatewayService struct {
	cfg    config.PaymentConfig
	client *http.Client
	cards  *validator.CardValidator
	logger *logrus.Logger
}

// NewGatewayService creates a new GatewayService
func NewGatewayService(cfg config.PaymentConfig, logger *logrus.Logger) *GatewayService {
	return &GatewayService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cards:  validator.NewCardValidator(),
		logger: logger,
	}
}

// Charge submits a card charge for the purchase amount. Card-level declines
// come back as the card sentinel errors; provider failures as
// ErrExternalGateway. A returned ChargeResult may still carry a non-approved
// status (asynchronous review).
func (s *GatewayService) Charge(ctx context.Context, purchase *models.Purchase, card models.CardDetails) (*ChargeResult, error) {
	number, err := s.cards.ValidateNumber(card.Number)
	if err != nil {
		return nil, models.ErrInvalidCard
	}
	if err := s.cards.ValidateCVV(card.CVV); err != nil {
		return nil, models.ErrInvalidCard
	}
	if err := s.cards.ValidateExpiry(card.ExpMonth, card.ExpYear); err != nil {
		if errors.Is(err, validator.ErrExpired) {
			return nil, models.ErrExpiredCard
		}
		return nil, models.ErrInvalidCard
	}
	card.Number = number

	if s.cfg.GatewayURL == "" {
		return s.sandboxCharge(purchase, card)
	}
	return s.remoteCharge(ctx, purchase, card)
}

func (s *GatewayService) sandboxCharge(purchase *models.Purchase, card models.CardDetails) (*ChargeResult, error) {
	switch card.Number {
	case cardInsufficientFunds:
		return nil, models.ErrInsufficientFunds
	case cardGatewayError:
		return nil, models.ErrExternalGateway
	case cardPendingReview:
		return &ChargeResult{ExternalID: "sbx_" + uuid.NewString(), Status: models.GatewayInProcess}, nil
	}

	s.logger.WithFields(logrus.Fields{
		"purchase_id": purchase.ID,
		"amount":      purchase.TotalAmount,
	}).Info("Sandbox charge approved")

	return &ChargeResult{ExternalID: "sbx_" + uuid.NewString(), Status: models.GatewayApproved}, nil
}

type gatewayChargeRequest struct {
	Reference  string  `json:"reference"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CardNumber string  `json:"card_number"`
	CardHolder string  `json:"card_holder"`
	ExpMonth   int     `json:"exp_month"`
	ExpYear    int     `json:"exp_year"`
	CVV        string  `json:"cvv"`
}

type gatewayChargeResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	DeclineCode  string `json:"decline_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s *GatewayService) remoteCharge(ctx context.Context, purchase *models.Purchase, card models.CardDetails) (*ChargeResult, error) {
	payload := gatewayChargeRequest{
		Reference:  purchase.Reference,
		Amount:     purchase.TotalAmount,
		Currency:   "USD",
		CardNumber: card.Number,
		CardHolder: card.HolderName,
		ExpMonth:   card.ExpMonth,
		ExpYear:    card.ExpYear,
		CVV:        card.CVV,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Payment gateway unreachable")
		return nil, models.ErrExternalGateway
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		s.logger.WithField("status", resp.StatusCode).Error("Payment gateway server error")
		return nil, models.ErrExternalGateway
	}

	var chargeResp gatewayChargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&chargeResp); err != nil {
		s.logger.WithError(err).Error("Malformed gateway response")
		return nil, models.ErrExternalGateway
	}

	switch chargeResp.DeclineCode {
	case "insufficient_funds":
		return nil, models.ErrInsufficientFunds
	case "expired_card":
		return nil, models.ErrExpiredCard
	case "invalid_card":
		return nil, models.ErrInvalidCard
	}

	return &ChargeResult{
		ExternalID: chargeResp.PaymentID,
		Status:     models.GatewayStatus(chargeResp.Status),
	}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 signature the gateway sends
// with each notification
func (s *GatewayService) VerifyWebhookSignature(payload []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}
	mac := hmac.New(sha512.New, []byte(s.cfg.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
