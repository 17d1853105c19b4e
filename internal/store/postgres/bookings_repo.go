package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) Book(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		appt, err := bookEventInTx(ctx, calendarTx{tx: tx}, eventID, clientID, professionalID)
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (store.AppointmentWithEvent, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AppointmentWithEvent{}, store.ErrNotFound
	}
	if err != nil {
		return store.AppointmentWithEvent{}, err
	}

	var ev domain.CalendarEvent
	err = r.db.NewSelect().
		Model(&ev).
		Where("id = ?", appt.CalendarEventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AppointmentWithEvent{}, store.ErrNotFound
	}
	if err != nil {
		return store.AppointmentWithEvent{}, err
	}

	return store.AppointmentWithEvent{Appointment: appt, Event: ev}, nil
}

func (r *BookingRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	eventID, err := r.boundEventID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		appt, err := setStatusInTx(ctx, calendarTx{tx: tx}, id, status)
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *BookingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	eventID, err := r.boundEventID(ctx, id)
	if err != nil {
		return err
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}
		return deleteAppointmentInTx(ctx, calendarTx{tx: tx}, id)
	})
}

// boundEventID resolves the event an appointment is bound to so the write
// path can take the event lock before re-reading state inside it.
func (r *BookingRepo) boundEventID(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Column("calendar_event_id").
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, store.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return appt.CalendarEventID, nil
}

func (r *BookingRepo) ListByClient(ctx context.Context, clientID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
	return r.list(ctx, "client_id", clientID, q)
}

func (r *BookingRepo) ListByProfessional(ctx context.Context, professionalID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
	return r.list(ctx, "professional_id", professionalID, q)
}

func (r *BookingRepo) list(ctx context.Context, ownerColumn string, ownerID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
	applyFilter := func(sel *bun.SelectQuery) *bun.SelectQuery {
		sel = sel.
			Join("JOIN calendar_events AS ce ON ce.id = appointment.calendar_event_id").
			Where("appointment.? = ?", bun.Ident(ownerColumn), ownerID)
		if q.Status != nil {
			sel = sel.Where("appointment.status = ?", *q.Status)
		}
		if q.From != nil {
			sel = sel.Where("ce.start_time >= ?", *q.From)
		}
		if q.To != nil {
			sel = sel.Where("ce.start_time <= ?", *q.To)
		}
		return sel
	}

	total, err := applyFilter(r.db.NewSelect().Model((*domain.Appointment)(nil))).Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	order := "ce.start_time ASC"
	if q.OrderDesc {
		order = "ce.start_time DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	var appts []domain.Appointment
	err = applyFilter(r.db.NewSelect().Model(&appts)).
		OrderExpr(order).
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	out, err := r.attachEvents(ctx, appts)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *BookingRepo) ListUpcoming(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]store.AppointmentWithEvent, error) {
	if limit <= 0 {
		limit = 5
	}

	var appts []domain.Appointment
	sel := r.db.NewSelect().
		Model(&appts).
		Join("JOIN calendar_events AS ce ON ce.id = appointment.calendar_event_id").
		Where("appointment.professional_id = ?", professionalID).
		Where("ce.start_time >= now()").
		Where("ce.event_type = ?", domain.EventTypeAppointment)
	if status != nil {
		sel = sel.Where("appointment.status = ?", *status)
	}
	err := sel.
		OrderExpr("appointment.created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return r.attachEvents(ctx, appts)
}

func (r *BookingRepo) attachEvents(ctx context.Context, appts []domain.Appointment) ([]store.AppointmentWithEvent, error) {
	out := make([]store.AppointmentWithEvent, 0, len(appts))
	if len(appts) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.CalendarEventID)
	}

	var events []domain.CalendarEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.CalendarEvent, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	for _, a := range appts {
		out = append(out, store.AppointmentWithEvent{Appointment: a, Event: byID[a.CalendarEventID]})
	}
	return out, nil
}

// bookEventInTx is the booking sequence: load, binding uniqueness,
// availability, conflict re-check, insert. It runs under the event's advisory
// lock; the unique index on calendar_event_id is the backstop for anything
// that slips past the pre-checks. The binding check comes before the flag so
// a booked event always reports ErrAlreadyBooked; an unavailable flag without
// a binding means the professional closed the slot.
func bookEventInTx(ctx context.Context, tx store.CalendarTx, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error) {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Appointment{}, err
	}

	if _, err := tx.AppointmentForEvent(ctx, ev.ID); err == nil {
		return domain.Appointment{}, store.ErrAlreadyBooked
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Appointment{}, err
	}

	if !ev.IsAvailable {
		return domain.Appointment{}, store.ErrUnavailable
	}

	// Neighboring events may have moved since this event was created.
	n, err := tx.CountOverlapping(ctx, ev.CalendarID, ev.StartTime, ev.EndTime, ev.ID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if n > 0 {
		return domain.Appointment{}, store.ErrConflict
	}

	appt, err := tx.InsertAppointment(ctx, domain.Appointment{
		ProfessionalID:  professionalID,
		ClientID:        clientID,
		CalendarEventID: ev.ID,
		Status:          domain.StatusPending,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if err := tx.SetEventAvailability(ctx, ev.ID, false); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// setStatusInTx enforces the status state machine. A transition to CANCELED
// releases the slot while keeping the appointment row.
func setStatusInTx(ctx context.Context, tx store.CalendarTx, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	appt, err := tx.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !appt.Status.CanTransitionTo(status) {
		return domain.Appointment{}, store.ErrInvalidTransition
	}

	updated, err := tx.UpdateAppointmentStatus(ctx, id, status)
	if err != nil {
		return domain.Appointment{}, err
	}

	if status == domain.StatusCanceled {
		if err := tx.SetEventAvailability(ctx, appt.CalendarEventID, true); err != nil {
			return domain.Appointment{}, err
		}
	}
	return updated, nil
}

// deleteAppointmentInTx removes the binding and restores the event's
// availability so it can be booked again.
func deleteAppointmentInTx(ctx context.Context, tx store.CalendarTx, id uuid.UUID) error {
	appt, err := tx.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := tx.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	return tx.SetEventAvailability(ctx, appt.CalendarEventID, true)
}
