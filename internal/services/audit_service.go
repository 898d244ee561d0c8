package services

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rutaviva/booking-backend/internal/database"
	"github.com/rutaviva/booking-backend/internal/models"
	"github.com/rutaviva/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditService records booking-flow actions. Every write is best effort;
// an audit failure is logged and the request proceeds.
type AuditService struct {
	audits *database.BookingAuditRepository
	logger *logrus.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(audits *database.BookingAuditRepository, logger *logrus.Logger) *AuditService {
	return &AuditService{audits: audits, logger: logger}
}

// Record writes an audit entry enriched with request context when available
func (s *AuditService) Record(c *gin.Context, action, entityType string, entityID *uuid.UUID, userID *uuid.UUID, detail string) {
	audit := &models.BookingAudit{
		Action:     action,
		UserID:     userID,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if detail != "" {
		audit.Detail = &detail
	}

	if c != nil {
		ip := utils.GetRealIP(c)
		audit.IPAddress = &ip

		device := utils.ParseDevice(c)
		audit.UserAgent = &device.UserAgent
		if device.OS != "" {
			audit.DeviceOS = &device.OS
		}
	}

	if err := s.audits.Create(audit); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("Failed to write audit record")
	}
}

// RecordSystem writes an audit entry for an action with no originating request
func (s *AuditService) RecordSystem(action, entityType string, entityID *uuid.UUID, detail string) {
	s.Record(nil, action, entityType, entityID, nil, detail)
}
