package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/notify"
	"organiza/backend/internal/store"
)

type fakeRepo struct {
	bookFn               func(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error)
	getByIDFn            func(ctx context.Context, id uuid.UUID) (store.AppointmentWithEvent, error)
	setStatusFn          func(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	deleteFn             func(ctx context.Context, id uuid.UUID) error
	listByClientFn       func(ctx context.Context, clientID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error)
	listByProfessionalFn func(ctx context.Context, professionalID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error)
	listUpcomingFn       func(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]store.AppointmentWithEvent, error)
}

func (f *fakeRepo) Book(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, eventID, clientID, professionalID)
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (store.AppointmentWithEvent, error) {
	if f.getByIDFn == nil {
		panic("GetByID not configured")
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if f.setStatusFn == nil {
		panic("SetStatus not configured")
	}
	return f.setStatusFn(ctx, id, status)
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeRepo) ListByClient(ctx context.Context, clientID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
	if f.listByClientFn == nil {
		panic("ListByClient not configured")
	}
	return f.listByClientFn(ctx, clientID, q)
}

func (f *fakeRepo) ListByProfessional(ctx context.Context, professionalID uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
	if f.listByProfessionalFn == nil {
		panic("ListByProfessional not configured")
	}
	return f.listByProfessionalFn(ctx, professionalID, q)
}

func (f *fakeRepo) ListUpcoming(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]store.AppointmentWithEvent, error) {
	if f.listUpcomingFn == nil {
		panic("ListUpcoming not configured")
	}
	return f.listUpcomingFn(ctx, professionalID, status, limit)
}

type recordingPublisher struct {
	keys   []string
	events []notify.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, ev notify.BookingEvent) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func assertValidationError(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if vErr.Error() != want {
		t.Fatalf("error = %q, want %q", vErr.Error(), want)
	}
}

func TestServiceBook(t *testing.T) {
	eventID, clientID, professionalID := uuid.New(), uuid.New(), uuid.New()

	t.Run("requires ids", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, nil, nil)
		_, err := svc.Book(context.Background(), uuid.Nil, clientID, professionalID)
		assertValidationError(t, err, "event_id is required")
		_, err = svc.Book(context.Background(), eventID, uuid.Nil, professionalID)
		assertValidationError(t, err, "client_id is required")
		_, err = svc.Book(context.Background(), eventID, clientID, uuid.Nil)
		assertValidationError(t, err, "professional_id is required")
	})

	t.Run("publishes booking.created", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewService(&fakeRepo{
			bookFn: func(ctx context.Context, e, c, p uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{
					ID:              uuid.New(),
					CalendarEventID: e,
					ClientID:        c,
					ProfessionalID:  p,
					Status:          domain.StatusPending,
				}, nil
			},
		}, pub, nil)

		appt, err := svc.Book(context.Background(), eventID, clientID, professionalID)
		if err != nil {
			t.Fatalf("Book error: %v", err)
		}
		if len(pub.keys) != 1 || pub.keys[0] != notify.KeyBookingCreated {
			t.Fatalf("published keys = %v, want [%s]", pub.keys, notify.KeyBookingCreated)
		}
		if pub.events[0].AppointmentID != appt.ID {
			t.Fatalf("published appointment id = %s, want %s", pub.events[0].AppointmentID, appt.ID)
		}
	})

	t.Run("repo errors are passed through and not published", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := NewService(&fakeRepo{
			bookFn: func(ctx context.Context, e, c, p uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrAlreadyBooked
			},
		}, pub, nil)

		_, err := svc.Book(context.Background(), eventID, clientID, professionalID)
		if !errors.Is(err, store.ErrAlreadyBooked) {
			t.Fatalf("err = %v, want ErrAlreadyBooked", err)
		}
		if len(pub.keys) != 0 {
			t.Fatalf("published keys = %v, want none", pub.keys)
		}
	})

	t.Run("publish failure does not fail the booking", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		svc := NewService(&fakeRepo{
			bookFn: func(ctx context.Context, e, c, p uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{ID: uuid.New(), Status: domain.StatusPending}, nil
			},
		}, pub, nil)

		if _, err := svc.Book(context.Background(), eventID, clientID, professionalID); err != nil {
			t.Fatalf("Book error: %v", err)
		}
	})
}

func TestServiceSetStatus_PublishesStatusChange(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(&fakeRepo{
		setStatusFn: func(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
			return domain.Appointment{ID: id, Status: status}, nil
		},
	}, pub, nil)

	appt, err := svc.SetStatus(context.Background(), uuid.New(), domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if appt.Status != domain.StatusConfirmed {
		t.Fatalf("Status = %s, want %s", appt.Status, domain.StatusConfirmed)
	}
	if len(pub.keys) != 1 || pub.keys[0] != notify.KeyBookingStatusChanged {
		t.Fatalf("published keys = %v, want [%s]", pub.keys, notify.KeyBookingStatusChanged)
	}

	_, err = svc.SetStatus(context.Background(), uuid.New(), "DONE")
	assertValidationError(t, err, "invalid status")
}

func TestServiceDelete_PublishesRelease(t *testing.T) {
	pub := &recordingPublisher{}
	apptID := uuid.New()
	svc := NewService(&fakeRepo{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (store.AppointmentWithEvent, error) {
			return store.AppointmentWithEvent{
				Appointment: domain.Appointment{ID: id, Status: domain.StatusPending},
			}, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error { return nil },
	}, pub, nil)

	if err := svc.Delete(context.Background(), apptID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != notify.KeyBookingReleased {
		t.Fatalf("published keys = %v, want [%s]", pub.keys, notify.KeyBookingReleased)
	}
}

func TestNormalizeQuery(t *testing.T) {
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		q, err := normalizeQuery(store.AppointmentQuery{}, now)
		if err != nil {
			t.Fatalf("normalizeQuery error: %v", err)
		}
		if !q.From.Equal(now.Add(-7 * 24 * time.Hour)) {
			t.Fatalf("From = %v, want one week back", q.From)
		}
		if !q.To.Equal(now.Add(90 * 24 * time.Hour)) {
			t.Fatalf("To = %v, want three months ahead", q.To)
		}
	})

	t.Run("canceled widens lookback", func(t *testing.T) {
		status := domain.StatusCanceled
		q, err := normalizeQuery(store.AppointmentQuery{Status: &status}, now)
		if err != nil {
			t.Fatalf("normalizeQuery error: %v", err)
		}
		if !q.From.Equal(now.Add(-30 * 24 * time.Hour)) {
			t.Fatalf("From = %v, want thirty days back", q.From)
		}
	})

	t.Run("explicit window wins", func(t *testing.T) {
		from := now.Add(-time.Hour)
		to := now.Add(time.Hour)
		q, err := normalizeQuery(store.AppointmentQuery{From: &from, To: &to}, now)
		if err != nil {
			t.Fatalf("normalizeQuery error: %v", err)
		}
		if !q.From.Equal(from) || !q.To.Equal(to) {
			t.Fatalf("window = [%v, %v], want [%v, %v]", q.From, q.To, from, to)
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		from := now.Add(time.Hour)
		to := now.Add(-time.Hour)
		_, err := normalizeQuery(store.AppointmentQuery{From: &from, To: &to}, now)
		assertValidationError(t, err, "to must be after from")
	})

	t.Run("oversized window", func(t *testing.T) {
		from := now
		to := now.Add(400 * 24 * time.Hour)
		_, err := normalizeQuery(store.AppointmentQuery{From: &from, To: &to}, now)
		assertValidationError(t, err, "window must not exceed one year")
	})

	t.Run("unknown status", func(t *testing.T) {
		status := domain.AppointmentStatus("DONE")
		_, err := normalizeQuery(store.AppointmentQuery{Status: &status}, now)
		assertValidationError(t, err, "invalid status")
	})

	t.Run("clamps limit", func(t *testing.T) {
		q, err := normalizeQuery(store.AppointmentQuery{Limit: 5000}, now)
		if err != nil {
			t.Fatalf("normalizeQuery error: %v", err)
		}
		if q.Limit != maxQueryLimit {
			t.Fatalf("Limit = %d, want %d", q.Limit, maxQueryLimit)
		}
	})
}

func TestServiceListByClient_AttachesFlags(t *testing.T) {
	clientID := uuid.New()
	soon := time.Now().UTC().Add(2 * time.Hour)
	svc := NewService(&fakeRepo{
		listByClientFn: func(ctx context.Context, id uuid.UUID, q store.AppointmentQuery) ([]store.AppointmentWithEvent, int, error) {
			return []store.AppointmentWithEvent{{
				Appointment: domain.Appointment{ID: uuid.New(), ClientID: id, Status: domain.StatusPending},
				Event:       domain.CalendarEvent{StartTime: soon, EndTime: soon.Add(time.Hour)},
			}}, 1, nil
		},
	}, nil, nil)

	rows, total, err := svc.ListByClient(context.Background(), clientID, store.AppointmentQuery{})
	if err != nil {
		t.Fatalf("ListByClient error: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("total = %d, len = %d, want 1 and 1", total, len(rows))
	}
	flags := rows[0].Flags
	if flags.CanCancel {
		t.Fatal("CanCancel should be false within the notice period")
	}
	if !flags.NeedsConfirmation {
		t.Fatal("NeedsConfirmation should be true inside the confirmation window")
	}
	if flags.IsLate {
		t.Fatal("IsLate should be false before the event starts")
	}
}

func TestServiceListUpcoming(t *testing.T) {
	professionalID := uuid.New()

	t.Run("clamps limit", func(t *testing.T) {
		var gotLimit int
		svc := NewService(&fakeRepo{
			listUpcomingFn: func(ctx context.Context, id uuid.UUID, status *domain.AppointmentStatus, limit int) ([]store.AppointmentWithEvent, error) {
				gotLimit = limit
				return nil, nil
			},
		}, nil, nil)

		if _, _, err := svc.ListUpcoming(context.Background(), professionalID, nil, 0); err != nil {
			t.Fatalf("ListUpcoming error: %v", err)
		}
		if gotLimit != defaultUpcomingLimit {
			t.Fatalf("limit = %d, want default %d", gotLimit, defaultUpcomingLimit)
		}

		if _, _, err := svc.ListUpcoming(context.Background(), professionalID, nil, 500); err != nil {
			t.Fatalf("ListUpcoming error: %v", err)
		}
		if gotLimit != maxUpcomingLimit {
			t.Fatalf("limit = %d, want max %d", gotLimit, maxUpcomingLimit)
		}
	})

	t.Run("rejects canceled filter", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, nil, nil)
		status := domain.StatusCanceled
		_, _, err := svc.ListUpcoming(context.Background(), professionalID, &status, 5)
		assertValidationError(t, err, "status must be PENDING or CONFIRMED")
	})

	t.Run("summarizes by status", func(t *testing.T) {
		now := time.Now().UTC()
		soon := now.Add(12 * time.Hour)
		later := now.Add(5 * 24 * time.Hour)
		svc := NewService(&fakeRepo{
			listUpcomingFn: func(ctx context.Context, id uuid.UUID, status *domain.AppointmentStatus, limit int) ([]store.AppointmentWithEvent, error) {
				return []store.AppointmentWithEvent{
					{
						Appointment: domain.Appointment{ID: uuid.New(), Status: domain.StatusPending},
						Event:       domain.CalendarEvent{StartTime: soon, EndTime: soon.Add(time.Hour)},
					},
					{
						Appointment: domain.Appointment{ID: uuid.New(), Status: domain.StatusConfirmed},
						Event:       domain.CalendarEvent{StartTime: later, EndTime: later.Add(time.Hour)},
					},
				}, nil
			},
		}, nil, nil)

		rows, summary, err := svc.ListUpcoming(context.Background(), professionalID, nil, 10)
		if err != nil {
			t.Fatalf("ListUpcoming error: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(rows))
		}
		if summary.Pending != 1 || summary.Confirmed != 1 {
			t.Fatalf("summary = %+v, want 1 pending and 1 confirmed", summary)
		}
		if summary.NeedsConfirmation != 1 {
			t.Fatalf("NeedsConfirmation = %d, want 1 (only the pending one inside the window)", summary.NeedsConfirmation)
		}
	})
}
