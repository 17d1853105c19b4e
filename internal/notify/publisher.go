// Package notify publishes booking lifecycle events to a RabbitMQ topic
// exchange so downstream consumers (reminders, mail) can react without being
// in the booking path.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"organiza/backend/internal/domain"
)

// Routing keys on the bookings exchange.
const (
	KeyBookingCreated       = "booking.created"
	KeyBookingStatusChanged = "booking.status_changed"
	KeyBookingReleased      = "booking.released"
)

// BookingEvent is the wire payload for every booking routing key.
type BookingEvent struct {
	AppointmentID  uuid.UUID                `json:"appointmentId"`
	EventID        uuid.UUID                `json:"eventId"`
	ClientID       uuid.UUID                `json:"clientId"`
	ProfessionalID uuid.UUID                `json:"professionalId"`
	Status         domain.AppointmentStatus `json:"status,omitempty"`
	OccurredAt     time.Time                `json:"occurredAt"`
}

// Publisher delivers booking events. Publishing is best effort; callers log
// failures and never fail the booking because of them.
type Publisher interface {
	Publish(ctx context.Context, key string, ev BookingEvent) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, ev BookingEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Noop discards every event. Used when no broker is configured and in tests.
type Noop struct{}

func (Noop) Publish(context.Context, string, BookingEvent) error { return nil }
func (Noop) Close() error                                        { return nil }
