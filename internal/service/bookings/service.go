package bookings

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/notify"
	"organiza/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

const (
	defaultLookback  = 7 * 24 * time.Hour
	defaultLookahead = 90 * 24 * time.Hour
	canceledLookback = 30 * 24 * time.Hour
	maxQuerySpan     = 365 * 24 * time.Hour

	defaultUpcomingLimit = 5
	maxUpcomingLimit     = 50

	maxQueryLimit = 100
)

// Appointment is the read-side shape: the stored row, its event, and the
// flags derived from the clock at read time.
type Appointment struct {
	domain.Appointment
	Event domain.CalendarEvent    `json:"event"`
	Flags domain.AppointmentFlags `json:"flags"`
}

// UpcomingSummary counts the returned upcoming appointments by state.
type UpcomingSummary struct {
	Pending           int `json:"pending"`
	Confirmed         int `json:"confirmed"`
	NeedsConfirmation int `json:"needsConfirmation"`
}

type Service struct {
	repo      store.BookingRepository
	publisher notify.Publisher
	log       *slog.Logger
}

func NewService(repo store.BookingRepository, publisher notify.Publisher, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = notify.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, log: log}
}

func (s *Service) Book(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error) {
	if eventID == uuid.Nil {
		return domain.Appointment{}, validationError("event_id is required")
	}
	if clientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if professionalID == uuid.Nil {
		return domain.Appointment{}, validationError("professional_id is required")
	}

	appt, err := s.repo.Book(ctx, eventID, clientID, professionalID)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.publish(ctx, notify.KeyBookingCreated, appt)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	if id == uuid.Nil {
		return Appointment{}, validationError("appointment_id is required")
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	return withFlags(row, time.Now().UTC()), nil
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !status.Valid() {
		return domain.Appointment{}, validationError("invalid status")
	}

	appt, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return domain.Appointment{}, err
	}
	s.publish(ctx, notify.KeyBookingStatusChanged, appt)
	return appt, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return s.SetStatus(ctx, id, domain.StatusCanceled)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("appointment_id is required")
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, notify.KeyBookingReleased, row.Appointment)
	return nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, q store.AppointmentQuery) ([]Appointment, int, error) {
	if clientID == uuid.Nil {
		return nil, 0, validationError("client_id is required")
	}
	normalized, err := normalizeQuery(q, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.ListByClient(ctx, clientID, normalized)
	if err != nil {
		return nil, 0, err
	}
	return attachFlags(rows), total, nil
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, q store.AppointmentQuery) ([]Appointment, int, error) {
	if professionalID == uuid.Nil {
		return nil, 0, validationError("professional_id is required")
	}
	normalized, err := normalizeQuery(q, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.ListByProfessional(ctx, professionalID, normalized)
	if err != nil {
		return nil, 0, err
	}
	return attachFlags(rows), total, nil
}

func (s *Service) ListUpcoming(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]Appointment, UpcomingSummary, error) {
	if professionalID == uuid.Nil {
		return nil, UpcomingSummary{}, validationError("professional_id is required")
	}
	if status != nil {
		if !status.Valid() {
			return nil, UpcomingSummary{}, validationError("invalid status")
		}
		if *status == domain.StatusCanceled {
			return nil, UpcomingSummary{}, validationError("status must be PENDING or CONFIRMED")
		}
	}
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	if limit > maxUpcomingLimit {
		limit = maxUpcomingLimit
	}
	rows, err := s.repo.ListUpcoming(ctx, professionalID, status, limit)
	if err != nil {
		return nil, UpcomingSummary{}, err
	}
	appts := attachFlags(rows)
	return appts, summarize(appts), nil
}

func summarize(appts []Appointment) UpcomingSummary {
	var sum UpcomingSummary
	for _, a := range appts {
		switch a.Status {
		case domain.StatusPending:
			sum.Pending++
		case domain.StatusConfirmed:
			sum.Confirmed++
		}
		if a.Flags.NeedsConfirmation {
			sum.NeedsConfirmation++
		}
	}
	return sum
}

// normalizeQuery fills in the default window and bounds the span. An absent
// window means "one week back through three months ahead"; querying CANCELED
// rows widens the lower default to thirty days back.
func normalizeQuery(q store.AppointmentQuery, now time.Time) (store.AppointmentQuery, error) {
	if q.Status != nil && !q.Status.Valid() {
		return store.AppointmentQuery{}, validationError("invalid status")
	}

	if q.From == nil {
		lookback := defaultLookback
		if q.Status != nil && *q.Status == domain.StatusCanceled {
			lookback = canceledLookback
		}
		from := now.Add(-lookback)
		q.From = &from
	}
	if q.To == nil {
		to := now.Add(defaultLookahead)
		q.To = &to
	}

	if !q.From.Before(*q.To) {
		return store.AppointmentQuery{}, validationError("to must be after from")
	}
	if q.To.Sub(*q.From) > maxQuerySpan {
		return store.AppointmentQuery{}, validationError("window must not exceed one year")
	}
	if q.Limit > maxQueryLimit {
		q.Limit = maxQueryLimit
	}
	return q, nil
}

func withFlags(row store.AppointmentWithEvent, now time.Time) Appointment {
	return Appointment{
		Appointment: row.Appointment,
		Event:       row.Event,
		Flags:       domain.ComputeAppointmentFlags(row.Event.StartTime, row.Appointment.Status, now),
	}
}

func attachFlags(rows []store.AppointmentWithEvent) []Appointment {
	now := time.Now().UTC()
	out := make([]Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, withFlags(row, now))
	}
	return out
}

func (s *Service) publish(ctx context.Context, key string, appt domain.Appointment) {
	err := s.publisher.Publish(ctx, key, notify.BookingEvent{
		AppointmentID:  appt.ID,
		EventID:        appt.CalendarEventID,
		ClientID:       appt.ClientID,
		ProfessionalID: appt.ProfessionalID,
		Status:         appt.Status,
	})
	if err != nil {
		s.log.Warn("booking event publish failed", "key", key, "appointment_id", appt.ID, "error", err)
	}
}
