package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCanceled  AppointmentStatus = "CANCELED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status state machine permits moving to
// next. PENDING may become CONFIRMED or CANCELED, CONFIRMED may become
// CANCELED, and CANCELED is terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCanceled
	case StatusConfirmed:
		return next == StatusCanceled
	}
	return false
}

// Appointment binds a client to exactly one CalendarEvent. The
// calendar_event_id column carries a unique constraint, which is the sole
// source of truth for "this event is booked".
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	ProfessionalID  uuid.UUID         `bun:"professional_id,notnull,type:uuid" json:"professionalId"`
	ClientID        uuid.UUID         `bun:"client_id,notnull,type:uuid" json:"clientId"`
	CalendarEventID uuid.UUID         `bun:"calendar_event_id,notnull,type:uuid" json:"calendarEventId"`
	Status          AppointmentStatus `bun:"status,notnull" json:"status"`
	Rating          *int              `bun:"rating" json:"rating,omitempty"`
	CreatedAt       time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// AppointmentFlags are display facts derived from the event start, the
// appointment status and the clock. They are recomputed on every read and
// never stored.
type AppointmentFlags struct {
	IsLate            bool `json:"isLate"`
	CanCancel         bool `json:"canCancel"`
	CanReschedule     bool `json:"canReschedule"`
	NeedsConfirmation bool `json:"needsConfirmation"`
}

const (
	cancelNotice       = 24 * time.Hour
	confirmationWindow = 48 * time.Hour
)

func ComputeAppointmentFlags(eventStart time.Time, status AppointmentStatus, now time.Time) AppointmentFlags {
	return AppointmentFlags{
		IsLate:            eventStart.Before(now) && status == StatusPending,
		CanCancel:         now.Before(eventStart.Add(-cancelNotice)),
		CanReschedule:     status != StatusCanceled && eventStart.Sub(now) > cancelNotice,
		NeedsConfirmation: status == StatusPending && eventStart.Sub(now) <= confirmationWindow,
	}
}
