package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
)

// CalendarTx is the set of statements available inside one calendar-scoped
// transaction. The write sequences (event create/update/delete, booking,
// release) are composed from these operations while an advisory lock holds
// concurrent writers off the same calendar or event.
type CalendarTx interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (domain.CalendarEvent, error)
	InsertEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID uuid.UUID, patch EventPatch) (domain.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID uuid.UUID) error
	ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.CalendarEvent, error)
	CountOverlapping(ctx context.Context, calendarID uuid.UUID, start, end time.Time, excludeEventID uuid.UUID) (int, error)
	SetEventAvailability(ctx context.Context, eventID uuid.UUID, available bool) error

	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// AppointmentForEvent returns ErrNotFound when the event is unbound.
	AppointmentForEvent(ctx context.Context, eventID uuid.UUID) (domain.Appointment, error)
	// InsertAppointment reports a unique violation on calendar_event_id as
	// ErrAlreadyBooked.
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}
