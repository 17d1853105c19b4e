package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/httperr"
	"organiza/backend/internal/httpresp"
	"organiza/backend/internal/service/events"
	"organiza/backend/internal/store"
)

// EventService is the slice of the events service the handlers need.
type EventService interface {
	Create(ctx context.Context, in events.CreateInput) (domain.CalendarEvent, error)
	CreateBatch(ctx context.Context, calendarID uuid.UUID, ins []events.CreateInput) ([]domain.CalendarEvent, error)
	Get(ctx context.Context, eventID uuid.UUID) (domain.CalendarEvent, error)
	Update(ctx context.Context, eventID uuid.UUID, in events.UpdateInput) (domain.CalendarEvent, error)
	Delete(ctx context.Context, eventID uuid.UUID) error
	DeleteBatch(ctx context.Context, calendarID uuid.UUID, eventIDs []uuid.UUID) (int64, error)
	List(ctx context.Context, calendarID uuid.UUID, filter store.EventFilter) ([]domain.CalendarEvent, int, error)
	HasConflict(ctx context.Context, calendarID uuid.UUID, start, end time.Time, excludeEventID uuid.UUID) (bool, error)
	FindAvailableSlots(ctx context.Context, calendarID uuid.UUID, windowStart, windowEnd time.Time, minDuration time.Duration) ([]domain.Interval, error)
	CleanOldEvents(ctx context.Context, calendarID uuid.UUID, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, calendarID uuid.UUID) (domain.EventStats, error)
}

type EventsHandler struct {
	svc EventService
}

func NewEventsHandler(svc EventService) *EventsHandler {
	return &EventsHandler{svc: svc}
}

type eventRequest struct {
	StartTime   time.Time        `json:"startTime" binding:"required"`
	EndTime     time.Time        `json:"endTime" binding:"required"`
	EventType   domain.EventType `json:"eventType" binding:"required"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	IsAvailable *bool            `json:"isAvailable"`
	Metadata    map[string]any   `json:"metadata"`
}

func (r eventRequest) toInput(calendarID uuid.UUID) events.CreateInput {
	return events.CreateInput{
		CalendarID:  calendarID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		EventType:   r.EventType,
		Title:       r.Title,
		Description: r.Description,
		IsAvailable: r.IsAvailable,
		Metadata:    r.Metadata,
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httperr.BadRequest(c, "invalid_id", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httperr.BadRequest(c, "invalid_time", name+" must be RFC 3339")
		return nil, false
	}
	return &t, true
}

func (h *EventsHandler) Create(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "malformed event payload")
		return
	}

	created, err := h.svc.Create(c.Request.Context(), req.toInput(calendarID))
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.Created(c, created)
}

func (h *EventsHandler) CreateBatch(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	var req struct {
		Events []eventRequest `json:"events" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "malformed batch payload")
		return
	}

	ins := make([]events.CreateInput, 0, len(req.Events))
	for _, e := range req.Events {
		ins = append(ins, e.toInput(calendarID))
	}

	created, err := h.svc.CreateBatch(c.Request.Context(), calendarID, ins)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.Created(c, gin.H{"events": created})
}

func (h *EventsHandler) Get(c *gin.Context) {
	eventID, ok := pathUUID(c, "eventID")
	if !ok {
		return
	}
	ev, err := h.svc.Get(c.Request.Context(), eventID)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, ev)
}

func (h *EventsHandler) Update(c *gin.Context) {
	eventID, ok := pathUUID(c, "eventID")
	if !ok {
		return
	}
	var req struct {
		StartTime   *time.Time        `json:"startTime"`
		EndTime     *time.Time        `json:"endTime"`
		EventType   *domain.EventType `json:"eventType"`
		Title       *string           `json:"title"`
		Description *string           `json:"description"`
		IsAvailable *bool             `json:"isAvailable"`
		Metadata    map[string]any    `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "malformed event patch")
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), eventID, events.UpdateInput{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		EventType:   req.EventType,
		Title:       req.Title,
		Description: req.Description,
		IsAvailable: req.IsAvailable,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, updated)
}

func (h *EventsHandler) Delete(c *gin.Context) {
	eventID, ok := pathUUID(c, "eventID")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), eventID); err != nil {
		httperr.FromError(c, err)
		return
	}
	c.Status(204)
}

func (h *EventsHandler) DeleteBatch(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	var req struct {
		EventIDs []uuid.UUID `json:"eventIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "malformed delete payload")
		return
	}

	removed, err := h.svc.DeleteBatch(c.Request.Context(), calendarID, req.EventIDs)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"deleted": removed})
}

func (h *EventsHandler) List(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}

	filter := store.EventFilter{}
	var timeOK bool
	if filter.From, timeOK = queryTime(c, "from"); !timeOK {
		return
	}
	if filter.To, timeOK = queryTime(c, "to"); !timeOK {
		return
	}
	if raw := c.Query("eventType"); raw != "" {
		et := domain.EventType(raw)
		filter.EventType = &et
	}
	if raw := c.Query("isAvailable"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			httperr.BadRequest(c, "invalid_request", "isAvailable must be a boolean")
			return
		}
		filter.IsAvailable = &available
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.OrderDesc = c.Query("order") == "desc"

	rows, total, err := h.svc.List(c.Request.Context(), calendarID, filter)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.List(c, rows, total)
}

func (h *EventsHandler) CheckConflict(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return
	}
	if start == nil || end == nil {
		httperr.BadRequest(c, "invalid_request", "start and end are required")
		return
	}
	exclude := uuid.Nil
	if raw := c.Query("excludeEventId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httperr.BadRequest(c, "invalid_id", "invalid excludeEventId")
			return
		}
		exclude = id
	}

	conflict, err := h.svc.HasConflict(c.Request.Context(), calendarID, *start, *end, exclude)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"conflict": conflict})
}

func (h *EventsHandler) AvailableSlots(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return
	}
	if start == nil || end == nil {
		httperr.BadRequest(c, "invalid_request", "start and end are required")
		return
	}
	minDuration := 30 * time.Minute
	if raw := c.Query("minDuration"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			httperr.BadRequest(c, "invalid_request", "minDuration must be a duration")
			return
		}
		minDuration = d
	}

	slots, err := h.svc.FindAvailableSlots(c.Request.Context(), calendarID, *start, *end, minDuration)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	if slots == nil {
		slots = []domain.Interval{}
	}
	httpresp.OK(c, gin.H{"slots": slots})
}

func (h *EventsHandler) CleanOldEvents(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	var req struct {
		Cutoff time.Time `json:"cutoff" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "cutoff is required")
		return
	}

	removed, err := h.svc.CleanOldEvents(c.Request.Context(), calendarID, req.Cutoff)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"deleted": removed})
}

func (h *EventsHandler) Stats(c *gin.Context) {
	calendarID, ok := pathUUID(c, "calendarID")
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), calendarID)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, stats)
}
