package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
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
	minEventDuration  = 15 * time.Minute
	maxEventDuration  = 8 * time.Hour
	schedulingHorizon = 365 * 24 * time.Hour
)

// StatsCache caches per-calendar event statistics. Implementations must treat
// a miss as (zero, false, nil); errors are logged and otherwise ignored so a
// degraded cache never fails a read.
type StatsCache interface {
	Get(ctx context.Context, calendarID uuid.UUID) (domain.EventStats, bool, error)
	Set(ctx context.Context, calendarID uuid.UUID, stats domain.EventStats) error
	Invalidate(ctx context.Context, calendarID uuid.UUID) error
}

type Service struct {
	repo  store.EventRepository
	cache StatsCache
	log   *slog.Logger
}

func NewService(repo store.EventRepository, cache StatsCache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cache: cache, log: log}
}

type CreateInput struct {
	CalendarID  uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	EventType   domain.EventType
	Title       string
	Description string
	IsAvailable *bool
	Metadata    map[string]any
}

func (in CreateInput) toEvent() domain.CalendarEvent {
	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	return domain.CalendarEvent{
		CalendarID:  in.CalendarID,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		EventType:   in.EventType,
		Title:       in.Title,
		Description: in.Description,
		IsAvailable: available,
		Metadata:    in.Metadata,
	}
}

func validateSpan(start, end time.Time) error {
	if !start.Before(end) {
		return validationError("end_time must be after start_time")
	}
	d := end.Sub(start)
	if d < minEventDuration {
		return validationError("event must be at least 15 minutes long")
	}
	if d > maxEventDuration {
		return validationError("event must be at most 8 hours long")
	}
	return nil
}

func validateStart(start, now time.Time) error {
	if !start.After(now) {
		return validationError("start_time must be in the future")
	}
	if start.After(now.Add(schedulingHorizon)) {
		return validationError("start_time must be within one year")
	}
	return nil
}

func validateInterval(start, end, now time.Time) error {
	if err := validateSpan(start, end); err != nil {
		return err
	}
	return validateStart(start, now)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.CalendarEvent, error) {
	if in.CalendarID == uuid.Nil {
		return domain.CalendarEvent{}, validationError("calendar_id is required")
	}
	if !in.EventType.Valid() {
		return domain.CalendarEvent{}, validationError("invalid event_type")
	}

	ev := in.toEvent()
	if err := validateInterval(ev.StartTime, ev.EndTime, time.Now().UTC()); err != nil {
		return domain.CalendarEvent{}, err
	}

	created, err := s.repo.Create(ctx, ev)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	s.invalidateStats(ctx, created.CalendarID)
	return created, nil
}

// CreateBatch validates every item before touching storage; persistence is
// all or nothing.
func (s *Service) CreateBatch(ctx context.Context, calendarID uuid.UUID, ins []CreateInput) ([]domain.CalendarEvent, error) {
	if calendarID == uuid.Nil {
		return nil, validationError("calendar_id is required")
	}
	if len(ins) == 0 {
		return nil, validationError("at least one event is required")
	}

	now := time.Now().UTC()
	evs := make([]domain.CalendarEvent, 0, len(ins))
	for _, in := range ins {
		if !in.EventType.Valid() {
			return nil, validationError("invalid event_type")
		}
		ev := in.toEvent()
		ev.CalendarID = calendarID
		if err := validateInterval(ev.StartTime, ev.EndTime, now); err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}

	created, err := s.repo.CreateBatch(ctx, calendarID, evs)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, calendarID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, eventID uuid.UUID) (domain.CalendarEvent, error) {
	if eventID == uuid.Nil {
		return domain.CalendarEvent{}, validationError("event_id is required")
	}
	return s.repo.GetByID(ctx, eventID)
}

type UpdateInput struct {
	StartTime   *time.Time
	EndTime     *time.Time
	EventType   *domain.EventType
	Title       *string
	Description *string
	IsAvailable *bool
	Metadata    map[string]any
}

func (s *Service) Update(ctx context.Context, eventID uuid.UUID, in UpdateInput) (domain.CalendarEvent, error) {
	if eventID == uuid.Nil {
		return domain.CalendarEvent{}, validationError("event_id is required")
	}
	if in.EventType != nil && !in.EventType.Valid() {
		return domain.CalendarEvent{}, validationError("invalid event_type")
	}

	patch := store.EventPatch{
		EventType:   in.EventType,
		Title:       in.Title,
		Description: in.Description,
		IsAvailable: in.IsAvailable,
		Metadata:    in.Metadata,
	}
	if in.StartTime != nil {
		t := in.StartTime.UTC()
		patch.StartTime = &t
	}
	if in.EndTime != nil {
		t := in.EndTime.UTC()
		patch.EndTime = &t
	}

	// A patch touching one bound is merged with the other bound's stored
	// value so the resulting interval keeps its shape. The future and
	// horizon checks apply only to a supplied start.
	if patch.StartTime != nil || patch.EndTime != nil {
		start, end := patch.StartTime, patch.EndTime
		if start == nil || end == nil {
			current, err := s.repo.GetByID(ctx, eventID)
			if err != nil {
				return domain.CalendarEvent{}, err
			}
			if start == nil {
				t := current.StartTime
				start = &t
			}
			if end == nil {
				t := current.EndTime
				end = &t
			}
		}
		if err := validateSpan(*start, *end); err != nil {
			return domain.CalendarEvent{}, err
		}
		if patch.StartTime != nil {
			if err := validateStart(*patch.StartTime, time.Now().UTC()); err != nil {
				return domain.CalendarEvent{}, err
			}
		}
	}

	updated, err := s.repo.Update(ctx, eventID, patch)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	s.invalidateStats(ctx, updated.CalendarID)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return validationError("event_id is required")
	}
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, eventID); err != nil {
		return err
	}
	s.invalidateStats(ctx, ev.CalendarID)
	return nil
}

func (s *Service) DeleteBatch(ctx context.Context, calendarID uuid.UUID, eventIDs []uuid.UUID) (int64, error) {
	if calendarID == uuid.Nil {
		return 0, validationError("calendar_id is required")
	}
	if len(eventIDs) == 0 {
		return 0, validationError("at least one event_id is required")
	}
	for _, id := range eventIDs {
		if id == uuid.Nil {
			return 0, validationError("event_id is required")
		}
	}
	removed, err := s.repo.DeleteBatch(ctx, eventIDs)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.invalidateStats(ctx, calendarID)
	}
	return removed, nil
}

func (s *Service) List(ctx context.Context, calendarID uuid.UUID, filter store.EventFilter) ([]domain.CalendarEvent, int, error) {
	if calendarID == uuid.Nil {
		return nil, 0, validationError("calendar_id is required")
	}
	if filter.EventType != nil && !filter.EventType.Valid() {
		return nil, 0, validationError("invalid event_type")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, validationError("to must be after from")
	}
	return s.repo.List(ctx, calendarID, filter)
}

func (s *Service) HasConflict(ctx context.Context, calendarID uuid.UUID, start, end time.Time, excludeEventID uuid.UUID) (bool, error) {
	if calendarID == uuid.Nil {
		return false, validationError("calendar_id is required")
	}
	if !start.Before(end) {
		return false, validationError("end_time must be after start_time")
	}
	candidate := domain.Interval{Start: start.UTC(), End: end.UTC()}
	return s.repo.HasConflict(ctx, calendarID, candidate, excludeEventID)
}

func (s *Service) FindAvailableSlots(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time, minDuration time.Duration) ([]domain.Interval, error) {
	if calendarID == uuid.Nil {
		return nil, validationError("calendar_id is required")
	}
	if minDuration <= 0 {
		return nil, validationError("min_duration must be positive")
	}
	if windowStart.After(windowEnd) {
		return nil, validationError("window_end must not precede window_start")
	}
	window := domain.Interval{Start: windowStart.UTC(), End: windowEnd.UTC()}
	return s.repo.FindAvailableSlots(ctx, calendarID, window, minDuration)
}

// CleanOldEvents removes finished events with no bound appointment. The
// cutoff must be in the past so a bad caller cannot sweep the live schedule.
func (s *Service) CleanOldEvents(ctx context.Context, calendarID uuid.UUID, cutoff time.Time) (int64, error) {
	if calendarID == uuid.Nil {
		return 0, validationError("calendar_id is required")
	}
	if !cutoff.Before(time.Now().UTC()) {
		return 0, validationError("cutoff must be in the past")
	}
	removed, err := s.repo.CleanOldEvents(ctx, calendarID, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.invalidateStats(ctx, calendarID)
	}
	return removed, nil
}

func (s *Service) Stats(ctx context.Context, calendarID uuid.UUID) (domain.EventStats, error) {
	if calendarID == uuid.Nil {
		return domain.EventStats{}, validationError("calendar_id is required")
	}

	if s.cache != nil {
		stats, ok, err := s.cache.Get(ctx, calendarID)
		if err != nil {
			s.log.Warn("stats cache read failed", "calendar_id", calendarID, "error", err)
		} else if ok {
			return stats, nil
		}
	}

	stats, err := s.repo.Stats(ctx, calendarID, time.Now().UTC())
	if err != nil {
		return domain.EventStats{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, calendarID, stats); err != nil {
			s.log.Warn("stats cache write failed", "calendar_id", calendarID, "error", err)
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, calendarID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, calendarID); err != nil {
		s.log.Warn("stats cache invalidation failed", "calendar_id", calendarID, "error", err)
	}
}
