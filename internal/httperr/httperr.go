package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"organiza/backend/internal/service/bookings"
	"organiza/backend/internal/service/events"
	"organiza/backend/internal/store"
)

type HTTPError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func Write(c *gin.Context, status int, code, message string) {
	c.JSON(status, HTTPError{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, code, message string) {
	Write(c, http.StatusBadRequest, code, message)
}

func NotFound(c *gin.Context, code, message string) {
	Write(c, http.StatusNotFound, code, message)
}

func Internal(c *gin.Context, code, message string) {
	Write(c, http.StatusInternalServerError, code, message)
}

func Unauthorized(c *gin.Context, code, message string) {
	Write(c, http.StatusUnauthorized, code, message)
}

// FromError maps service and store errors onto HTTP statuses. Unknown errors
// become a generic 500 so internals never leak to clients.
func FromError(c *gin.Context, err error) {
	var eventsErr *events.ValidationError
	var bookingsErr *bookings.ValidationError
	switch {
	case errors.As(err, &eventsErr):
		BadRequest(c, "validation_failed", eventsErr.Error())
	case errors.As(err, &bookingsErr):
		BadRequest(c, "validation_failed", bookingsErr.Error())
	case errors.Is(err, store.ErrNotFound):
		NotFound(c, "not_found", "resource not found")
	case errors.Is(err, store.ErrConflict):
		Write(c, http.StatusConflict, "time_conflict", "interval overlaps an existing event")
	case errors.Is(err, store.ErrUnavailable):
		Write(c, http.StatusConflict, "event_unavailable", "event is not available for booking")
	case errors.Is(err, store.ErrAlreadyBooked):
		Write(c, http.StatusConflict, "already_booked", "event already has an appointment")
	case errors.Is(err, store.ErrInvalidTransition):
		Write(c, http.StatusUnprocessableEntity, "invalid_transition", "status transition not allowed")
	default:
		Internal(c, "internal_error", "internal error")
	}
}
