package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
)

// EventPatch carries the fields of a calendar event update. Nil fields are
// left untouched; time-range changes are re-validated against the rest of the
// calendar before they are applied.
type EventPatch struct {
	StartTime   *time.Time
	EndTime     *time.Time
	EventType   *domain.EventType
	Title       *string
	Description *string
	IsAvailable *bool
	Metadata    map[string]any
}

// EventFilter narrows and paginates calendar event listings.
type EventFilter struct {
	From        *time.Time
	To          *time.Time
	EventType   *domain.EventType
	IsAvailable *bool
	Page        int
	Limit       int
	OrderDesc   bool
}

type EventRepository interface {
	Create(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error)
	// CreateBatch persists all events or none. Each accepted item joins the
	// comparison set before the next one is checked, so siblings within the
	// batch conflict with each other exactly like persisted events.
	CreateBatch(ctx context.Context, calendarID uuid.UUID, evs []domain.CalendarEvent) ([]domain.CalendarEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CalendarEvent, error)
	Update(ctx context.Context, id uuid.UUID, patch EventPatch) (domain.CalendarEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error)
	List(ctx context.Context, calendarID uuid.UUID, f EventFilter) ([]domain.CalendarEvent, int, error)
	HasConflict(ctx context.Context, calendarID uuid.UUID, candidate domain.Interval, excludeEventID uuid.UUID) (bool, error)
	FindAvailableSlots(ctx context.Context, calendarID uuid.UUID, window domain.Interval, minDuration time.Duration) ([]domain.Interval, error)
	// CleanOldEvents removes events ending before cutoff that have no bound
	// appointment and reports how many were deleted.
	CleanOldEvents(ctx context.Context, calendarID uuid.UUID, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, calendarID uuid.UUID, now time.Time) (domain.EventStats, error)
}
