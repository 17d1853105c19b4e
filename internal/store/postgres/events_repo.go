package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/store"
)

type EventRepo struct {
	db *bun.DB
}

func NewEventRepo(db *bun.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Create(ctx context.Context, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	var out domain.CalendarEvent
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, ev.CalendarID); err != nil {
			return err
		}
		created, err := createEventInTx(ctx, calendarTx{tx: tx}, ev)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return out, nil
}

func (r *EventRepo) CreateBatch(ctx context.Context, calendarID uuid.UUID, evs []domain.CalendarEvent) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, calendarID); err != nil {
			return err
		}
		created, err := createEventsBatchInTx(ctx, calendarTx{tx: tx}, calendarID, evs)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.CalendarEvent, error) {
	var ev domain.CalendarEvent
	err := r.db.NewSelect().
		Model(&ev).
		Where("id = ?", id).
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

func (r *EventRepo) Update(ctx context.Context, id uuid.UUID, patch store.EventPatch) (domain.CalendarEvent, error) {
	var out domain.CalendarEvent
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvent(ctx, tx, id); err != nil {
			return err
		}
		c := calendarTx{tx: tx}
		ev, err := c.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := lockCalendar(ctx, tx, ev.CalendarID); err != nil {
			return err
		}
		updated, err := updateEventInTx(ctx, c, ev, patch)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return out, nil
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockEvent(ctx, tx, id); err != nil {
			return err
		}
		return deleteEventInTx(ctx, calendarTx{tx: tx}, id)
	})
}

func (r *EventRepo) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var deleted int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		deleted = 0
		for _, id := range sorted {
			if err := lockEvent(ctx, tx, id); err != nil {
				return err
			}
		}
		c := calendarTx{tx: tx}
		for _, id := range sorted {
			if err := deleteEventInTx(ctx, c, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *EventRepo) List(ctx context.Context, calendarID uuid.UUID, f store.EventFilter) ([]domain.CalendarEvent, int, error) {
	applyFilter := func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("calendar_id = ?", calendarID)
		if f.From != nil {
			q = q.Where("start_time >= ?", *f.From)
		}
		if f.To != nil {
			q = q.Where("end_time <= ?", *f.To)
		}
		if f.EventType != nil {
			q = q.Where("event_type = ?", *f.EventType)
		}
		if f.IsAvailable != nil {
			q = q.Where("is_available = ?", *f.IsAvailable)
		}
		return q
	}

	total, err := applyFilter(r.db.NewSelect().Model((*domain.CalendarEvent)(nil))).Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	order := "start_time ASC"
	if f.OrderDesc {
		order = "start_time DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	var rows []domain.CalendarEvent
	err = applyFilter(r.db.NewSelect().Model(&rows)).
		OrderExpr(order).
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *EventRepo) HasConflict(ctx context.Context, calendarID uuid.UUID, candidate domain.Interval, excludeEventID uuid.UUID) (bool, error) {
	q := r.db.NewSelect().
		Model((*domain.CalendarEvent)(nil)).
		Where("calendar_id = ?", calendarID).
		Where("start_time < ?", candidate.End).
		Where("end_time > ?", candidate.Start)
	if excludeEventID != uuid.Nil {
		q = q.Where("id != ?", excludeEventID)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *EventRepo) FindAvailableSlots(ctx context.Context, calendarID uuid.UUID, window domain.Interval, minDuration time.Duration) ([]domain.Interval, error) {
	var rows []domain.CalendarEvent
	err := r.db.NewSelect().
		Model(&rows).
		Where("calendar_id = ?", calendarID).
		Where("start_time < ?", window.End).
		Where("end_time > ?", window.Start).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FreeSlots(rows, window.Start, window.End, minDuration), nil
}

func (r *EventRepo) CleanOldEvents(ctx context.Context, calendarID uuid.UUID, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx, calendarID); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*domain.CalendarEvent)(nil)).
			Where("calendar_id = ?", calendarID).
			Where("end_time < ?", cutoff).
			Where("id NOT IN (SELECT calendar_event_id FROM appointments WHERE status != ?)", domain.StatusCanceled).
			Exec(ctx)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Stats runs its counts inside one transaction so the four numbers come from
// a single snapshot.
func (r *EventRepo) Stats(ctx context.Context, calendarID uuid.UUID, now time.Time) (domain.EventStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var stats domain.EventStats
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		base := func() *bun.SelectQuery {
			return tx.NewSelect().
				Model((*domain.CalendarEvent)(nil)).
				Where("calendar_id = ?", calendarID)
		}

		var err error
		if stats.Total, err = base().Count(ctx); err != nil {
			return err
		}
		if stats.Today, err = base().Where("start_time >= ?", dayStart).Where("start_time < ?", dayEnd).Count(ctx); err != nil {
			return err
		}
		if stats.Upcoming, err = base().Where("start_time > ?", now).Count(ctx); err != nil {
			return err
		}
		stats.Completed, err = base().Where("end_time < ?", now).Count(ctx)
		return err
	})
	if err != nil {
		return domain.EventStats{}, err
	}
	return stats, nil
}

// createEventInTx checks the candidate interval against every persisted event
// on the calendar and inserts on success. The caller holds the calendar lock.
func createEventInTx(ctx context.Context, tx store.CalendarTx, ev domain.CalendarEvent) (domain.CalendarEvent, error) {
	n, err := tx.CountOverlapping(ctx, ev.CalendarID, ev.StartTime, ev.EndTime, uuid.Nil)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	if n > 0 {
		return domain.CalendarEvent{}, store.ErrConflict
	}
	return tx.InsertEvent(ctx, ev)
}

// createEventsBatchInTx inserts events one by one inside the same
// transaction. Each inserted event is visible to the conflict count of the
// next, so siblings within a batch collide with each other; any failure rolls
// the whole batch back.
func createEventsBatchInTx(ctx context.Context, tx store.CalendarTx, calendarID uuid.UUID, evs []domain.CalendarEvent) ([]domain.CalendarEvent, error) {
	out := make([]domain.CalendarEvent, 0, len(evs))
	for _, ev := range evs {
		ev.CalendarID = calendarID
		created, err := createEventInTx(ctx, tx, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// updateEventInTx re-validates the resulting interval when the patch touches
// either bound, excluding the event from its own conflict check.
func updateEventInTx(ctx context.Context, tx store.CalendarTx, ev domain.CalendarEvent, patch store.EventPatch) (domain.CalendarEvent, error) {
	if patch.StartTime != nil || patch.EndTime != nil {
		start, end := ev.StartTime, ev.EndTime
		if patch.StartTime != nil {
			start = *patch.StartTime
		}
		if patch.EndTime != nil {
			end = *patch.EndTime
		}
		n, err := tx.CountOverlapping(ctx, ev.CalendarID, start, end, ev.ID)
		if err != nil {
			return domain.CalendarEvent{}, err
		}
		if n > 0 {
			return domain.CalendarEvent{}, store.ErrConflict
		}
	}
	return tx.UpdateEvent(ctx, ev.ID, patch)
}

// deleteEventInTx refuses to remove an event that still has a bound
// appointment.
func deleteEventInTx(ctx context.Context, tx store.CalendarTx, eventID uuid.UUID) error {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	_, err = tx.AppointmentForEvent(ctx, ev.ID)
	if err == nil {
		return store.ErrConflict
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return tx.DeleteEvent(ctx, ev.ID)
}
