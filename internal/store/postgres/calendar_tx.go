package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/store"
)

const (
	eventOverlapConstraint  = "calendar_events_no_overlap"
	bookingUniqueConstraint = "appointments_calendar_event_id_key"
	pgExclusionViolation    = "23P01"
	pgUniqueViolation       = "23505"
	pgForeignKeyViolation   = "23503"
)

// calendarTx implements store.CalendarTx over one bun transaction. Callers
// are expected to hold the relevant advisory lock before composing write
// sequences from these statements.
type calendarTx struct {
	tx bun.Tx
}

// lockCalendar serializes writers on one calendar for the duration of the
// surrounding transaction.
func lockCalendar(ctx context.Context, tx bun.Tx, calendarID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", calendarID.String()).Exec(ctx)
	return err
}

// lockEvent serializes booking-side writers on one event. Writers on other
// events of the same calendar proceed independently.
func lockEvent(ctx context.Context, tx bun.Tx, eventID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", eventID.String()).Exec(ctx)
	return err
}

func (c calendarTx) GetEvent(ctx context.Context, eventID uuid.UUID) (domain.CalendarEvent, error) {
	var ev domain.CalendarEvent
	err := c.tx.NewSelect().
		Model(&ev).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CalendarEvent{}, store.ErrNotFound
	}
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return ev, nil
}

func (c calendarTx) InsertEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	_, err := c.tx.NewInsert().Model(&ev).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == eventOverlapConstraint {
			return domain.CalendarEvent{}, store.ErrConflict
		}
		return domain.CalendarEvent{}, err
	}
	return ev, nil
}

func (c calendarTx) UpdateEvent(ctx context.Context, eventID uuid.UUID, patch store.EventPatch) (domain.CalendarEvent, error) {
	ev, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return domain.CalendarEvent{}, err
	}

	if patch.StartTime != nil {
		ev.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		ev.EndTime = *patch.EndTime
	}
	if patch.EventType != nil {
		ev.EventType = *patch.EventType
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.IsAvailable != nil {
		ev.IsAvailable = *patch.IsAvailable
	}
	if patch.Metadata != nil {
		ev.Metadata = patch.Metadata
	}

	_, err = c.tx.NewUpdate().Model(&ev).WherePK().Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == eventOverlapConstraint {
			return domain.CalendarEvent{}, store.ErrConflict
		}
		return domain.CalendarEvent{}, err
	}
	return ev, nil
}

func (c calendarTx) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	res, err := c.tx.NewDelete().
		Model((*domain.CalendarEvent)(nil)).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c calendarTx) ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.CalendarEvent, error) {
	var rows []domain.CalendarEvent
	err := c.tx.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c calendarTx) CountOverlapping(ctx context.Context, calendarID uuid.UUID, start, end time.Time, excludeEventID uuid.UUID) (int, error) {
	q := c.tx.NewSelect().
		Model((*domain.CalendarEvent)(nil)).
		Where("calendar_id = ?", calendarID).
		Where("start_time < ?", end).
		Where("end_time > ?", start)
	if excludeEventID != uuid.Nil {
		q = q.Where("id != ?", excludeEventID)
	}
	return q.Count(ctx)
}

func (c calendarTx) SetEventAvailability(ctx context.Context, eventID uuid.UUID, available bool) error {
	res, err := c.tx.NewUpdate().
		Model((*domain.CalendarEvent)(nil)).
		Set("is_available = ?", available).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c calendarTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := c.tx.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// AppointmentForEvent returns the live binding for an event. Canceled rows
// are history, not bindings; they never block a new booking.
func (c calendarTx) AppointmentForEvent(ctx context.Context, eventID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := c.tx.NewSelect().
		Model(&appt).
		Where("calendar_event_id = ?", eventID).
		Where("status != ?", domain.StatusCanceled).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (c calendarTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	_, err := c.tx.NewInsert().Model(&appt).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == bookingUniqueConstraint {
				return domain.Appointment{}, store.ErrAlreadyBooked
			}
			if pgErr.Code == pgForeignKeyViolation {
				return domain.Appointment{}, store.ErrNotFound
			}
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (c calendarTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	appt, err := c.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt.Status = status
	_, err = c.tx.NewUpdate().Model(&appt).WherePK().Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (c calendarTx) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	res, err := c.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
