package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
)

// AppointmentWithEvent pairs an appointment with the calendar event it is
// bound to, the shape every read-side query returns.
type AppointmentWithEvent struct {
	Appointment domain.Appointment
	Event       domain.CalendarEvent
}

// AppointmentQuery filters appointment listings. From and To bound the start
// time of the bound event, not the appointment's creation time.
type AppointmentQuery struct {
	Status    *domain.AppointmentStatus
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
	OrderDesc bool
}

type BookingRepository interface {
	// Book runs the whole booking sequence as one atomic unit: load event,
	// assert availability and uniqueness, re-check conflict-freedom, insert a
	// PENDING appointment. Concurrent calls on the same event yield exactly
	// one success; the rest fail with ErrAlreadyBooked.
	Book(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (AppointmentWithEvent, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	// Delete removes the appointment row, clearing the binding and restoring
	// the event's availability.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID, q AppointmentQuery) ([]AppointmentWithEvent, int, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, q AppointmentQuery) ([]AppointmentWithEvent, int, error)
	ListUpcoming(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]AppointmentWithEvent, error)
}
