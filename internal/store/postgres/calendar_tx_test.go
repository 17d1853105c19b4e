package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/store"
)

// memTx is an in-memory store.CalendarTx used to exercise the transaction
// helpers. Every statement takes the mutex on its own, mirroring how the
// unique constraint catches racers that slip between the pre-checks and the
// insert.
type memTx struct {
	mu           sync.Mutex
	events       map[uuid.UUID]domain.CalendarEvent
	appointments map[uuid.UUID]domain.Appointment
}

func newMemTx() *memTx {
	return &memTx{
		events:       make(map[uuid.UUID]domain.CalendarEvent),
		appointments: make(map[uuid.UUID]domain.Appointment),
	}
}

func (m *memTx) addEvent(ev domain.CalendarEvent) domain.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	m.events[ev.ID] = ev
	return ev
}

func (m *memTx) GetEvent(ctx context.Context, eventID uuid.UUID) (domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return domain.CalendarEvent{}, store.ErrNotFound
	}
	return ev, nil
}

func (m *memTx) InsertEvent(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	for _, existing := range m.events {
		if existing.CalendarID == ev.CalendarID && existing.Interval().Overlaps(ev.Interval()) {
			return domain.CalendarEvent{}, store.ErrConflict
		}
	}
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *memTx) UpdateEvent(ctx context.Context, eventID uuid.UUID, patch store.EventPatch) (domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return domain.CalendarEvent{}, store.ErrNotFound
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
	m.events[eventID] = ev
	return ev, nil
}

func (m *memTx) DeleteEvent(ctx context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return store.ErrNotFound
	}
	delete(m.events, eventID)
	return nil
}

func (m *memTx) ListEventsInWindow(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CalendarEvent
	for _, ev := range m.events {
		if ev.CalendarID == calendarID && ev.StartTime.Before(windowEnd) && ev.EndTime.After(windowStart) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memTx) CountOverlapping(ctx context.Context, calendarID uuid.UUID, start, end time.Time, excludeEventID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate := domain.Interval{Start: start, End: end}
	n := 0
	for _, ev := range m.events {
		if ev.CalendarID != calendarID || ev.ID == excludeEventID {
			continue
		}
		if ev.Interval().Overlaps(candidate) {
			n++
		}
	}
	return n, nil
}

func (m *memTx) SetEventAvailability(ctx context.Context, eventID uuid.UUID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	ev.IsAvailable = available
	m.events[eventID] = ev
	return nil
}

func (m *memTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (m *memTx) AppointmentForEvent(ctx context.Context, eventID uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, appt := range m.appointments {
		if appt.CalendarEventID == eventID && appt.Status != domain.StatusCanceled {
			return appt, nil
		}
	}
	return domain.Appointment{}, store.ErrNotFound
}

func (m *memTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appointments {
		if existing.CalendarEventID == appt.CalendarEventID && existing.Status != domain.StatusCanceled {
			return domain.Appointment{}, store.ErrAlreadyBooked
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	m.appointments[appt.ID] = appt
	return appt, nil
}

func (m *memTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.Status = status
	m.appointments[id] = appt
	return appt, nil
}

func (m *memTx) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.appointments, id)
	return nil
}
