package http

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"organiza/backend/internal/domain"
	"organiza/backend/internal/httperr"
	"organiza/backend/internal/httpresp"
	"organiza/backend/internal/service/bookings"
	"organiza/backend/internal/store"
)

// BookingService is the slice of the bookings service the handlers need.
type BookingService interface {
	Book(ctx context.Context, eventID, clientID, professionalID uuid.UUID) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (bookings.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID, q store.AppointmentQuery) ([]bookings.Appointment, int, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, q store.AppointmentQuery) ([]bookings.Appointment, int, error)
	ListUpcoming(ctx context.Context, professionalID uuid.UUID, status *domain.AppointmentStatus, limit int) ([]bookings.Appointment, bookings.UpcomingSummary, error)
}

type BookingsHandler struct {
	svc BookingService
}

func NewBookingsHandler(svc BookingService) *BookingsHandler {
	return &BookingsHandler{svc: svc}
}

func (h *BookingsHandler) Book(c *gin.Context) {
	var req struct {
		EventID        uuid.UUID `json:"eventId" binding:"required"`
		ClientID       uuid.UUID `json:"clientId" binding:"required"`
		ProfessionalID uuid.UUID `json:"professionalId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "malformed booking payload")
		return
	}

	appt, err := h.svc.Book(c.Request.Context(), req.EventID, req.ClientID, req.ProfessionalID)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.Created(c, appt)
}

func (h *BookingsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, appt)
}

func (h *BookingsHandler) SetStatus(c *gin.Context) {
	id, ok := pathUUID(c, "appointmentID")
	if !ok {
		return
	}
	var req struct {
		Status domain.AppointmentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", "status is required")
		return
	}

	appt, err := h.svc.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.OK(c, appt)
}

func (h *BookingsHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "appointmentID")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		httperr.FromError(c, err)
		return
	}
	c.Status(204)
}

func appointmentQuery(c *gin.Context) (store.AppointmentQuery, bool) {
	q := store.AppointmentQuery{}
	var ok bool
	if q.From, ok = queryTime(c, "from"); !ok {
		return store.AppointmentQuery{}, false
	}
	if q.To, ok = queryTime(c, "to"); !ok {
		return store.AppointmentQuery{}, false
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.AppointmentStatus(raw)
		q.Status = &status
	}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	q.OrderDesc = c.Query("order") == "desc"
	return q, true
}

func (h *BookingsHandler) ListByClient(c *gin.Context) {
	clientID, ok := pathUUID(c, "clientID")
	if !ok {
		return
	}
	q, ok := appointmentQuery(c)
	if !ok {
		return
	}

	rows, total, err := h.svc.ListByClient(c.Request.Context(), clientID, q)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.List(c, rows, total)
}

func (h *BookingsHandler) ListByProfessional(c *gin.Context) {
	professionalID, ok := pathUUID(c, "professionalID")
	if !ok {
		return
	}
	q, ok := appointmentQuery(c)
	if !ok {
		return
	}

	rows, total, err := h.svc.ListByProfessional(c.Request.Context(), professionalID, q)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	httpresp.List(c, rows, total)
}

func (h *BookingsHandler) ListUpcoming(c *gin.Context) {
	professionalID, ok := pathUUID(c, "professionalID")
	if !ok {
		return
	}
	var status *domain.AppointmentStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.AppointmentStatus(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, summary, err := h.svc.ListUpcoming(c.Request.Context(), professionalID, status, limit)
	if err != nil {
		httperr.FromError(c, err)
		return
	}
	if rows == nil {
		rows = []bookings.Appointment{}
	}
	httpresp.OK(c, gin.H{"data": rows, "summary": summary})
}
