package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EventType string

const (
	EventTypeAppointment EventType = "APPOINTMENT"
	EventTypeBlock       EventType = "BLOCK"
	EventTypeVacation    EventType = "VACATION"
	EventTypeBreak       EventType = "BREAK"
	EventTypeCustom      EventType = "CUSTOM"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeAppointment, EventTypeBlock, EventTypeVacation, EventTypeBreak, EventTypeCustom:
		return true
	}
	return false
}

// Calendar owns a set of pairwise non-overlapping CalendarEvents and belongs
// to exactly one professional, who is managed outside this service.
type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	ProfessionalID uuid.UUID `bun:"professional_id,notnull,type:uuid" json:"professionalId"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// CalendarEvent is a bookable or blocking interval on one calendar. Within a
// calendar all persisted events are pairwise non-overlapping under half-open
// semantics; the calendar_events_no_overlap exclusion constraint backstops
// that invariant at the storage layer.
type CalendarEvent struct {
	bun.BaseModel `bun:"table:calendar_events"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	CalendarID  uuid.UUID      `bun:"calendar_id,notnull,type:uuid" json:"calendarId"`
	StartTime   time.Time      `bun:"start_time,notnull" json:"startTime"`
	EndTime     time.Time      `bun:"end_time,notnull" json:"endTime"`
	EventType   EventType      `bun:"event_type,notnull" json:"eventType"`
	Title       string         `bun:"title" json:"title,omitempty"`
	Description string         `bun:"description" json:"description,omitempty"`
	IsAvailable bool           `bun:"is_available,notnull" json:"isAvailable"`
	Metadata    map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull" json:"updatedAt"`
}

func (e *CalendarEvent) Interval() Interval {
	return Interval{Start: e.StartTime, End: e.EndTime}
}

func (e *CalendarEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// EventStats summarizes one calendar relative to the current time.
type EventStats struct {
	Total     int `json:"total"`
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
}
