package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rutaviva/booking-backend/internal/models"
)

// BookingAuditRepository handles booking audit database operations
type BookingAuditRepository struct {
	db *sqlx.DB
}

// NewBookingAuditRepository creates a new BookingAuditRepository
func NewBookingAuditRepository(db *sqlx.DB) *BookingAuditRepository {
	return &BookingAuditRepository{db: db}
}

// Create inserts an audit record
func (r *BookingAuditRepository) Create(audit *models.BookingAudit) error {
	audit.ID = uuid.New()
	audit.CreatedAt = time.Now()

	query := `
		INSERT INTO booking_audits (
			id, action, user_id, entity_type, entity_id,
			detail, ip_address, user_agent, device_os, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(query,
		audit.ID, audit.Action, audit.UserID, audit.EntityType, audit.EntityID,
		audit.Detail, audit.IPAddress, audit.UserAgent, audit.DeviceOS, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking audit: %w", err)
	}
	return nil
}

// ListByEntity retrieves the audit trail for one entity, newest first
func (r *BookingAuditRepository) ListByEntity(entityType string, entityID uuid.UUID, limit int) ([]models.BookingAudit, error) {
	var list []models.BookingAudit

	query := `
		SELECT id, action, user_id, entity_type, entity_id,
		       detail, ip_address, user_agent, device_os, created_at
		FROM booking_audits
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	if err := r.db.Select(&list, query, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("failed to list booking audits: %w", err)
	}
	return list, nil
}
