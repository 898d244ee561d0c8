package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Event names published to the booking queue
const (
	EventReservationCreated = "booking.created"
	EventBookingSettled     = "booking.settled"
	EventBookingCancelled   = "booking.cancelled"
)

// BookingEvent is the message published for downstream consumers
// (notifications, analytics). Consumers key off Type.
type BookingEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id,omitempty"`
	PurchaseID    string    `json:"purchase_id"`
	UserID        string    `json:"user_id"`
	TripDateID    string    `json:"trip_date_id,omitempty"`
	Quantity      int       `json:"quantity,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotifierService publishes booking events to RabbitMQ. Publishing is fire
// and forget: a broker outage is logged, never surfaced to the request. The
// connection is dialed per publish; booking event volume does not justify a
// managed channel pool.
type NotifierService struct {
	url       string
	queueName string
	logger    *logrus.Logger
}

// NewNotifierService creates a new NotifierService. An empty URL disables
// publishing.
func NewNotifierService(url, queueName string, logger *logrus.Logger) *NotifierService {
	return &NotifierService{url: url, queueName: queueName, logger: logger}
}

// Publish sends one event, logging failures instead of returning them
func (s *NotifierService) Publish(ctx context.Context, event BookingEvent) {
	if s.url == "" {
		return
	}
	if err := s.publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("Failed to publish booking event")
	}
}

func (s *NotifierService) publish(ctx context.Context, event BookingEvent) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(s.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	event.OccurredAt = time.Now().UTC()
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", s.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
