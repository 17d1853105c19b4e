// Package http wires the gin routes for calendars, events and bookings.
package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"organiza/backend/internal/middleware"
)

type RouterConfig struct {
	// JWTSecret guards every route under /api/v1 when set. An empty secret
	// leaves the API open, which is only acceptable in development.
	JWTSecret      string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func NewRouter(events *EventsHandler, bookings *BookingsHandler, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	if cfg.RequestTimeout > 0 {
		api.Use(requestTimeout(cfg.RequestTimeout))
	}
	if cfg.JWTSecret != "" {
		api.Use(middleware.Auth(cfg.JWTSecret))
	}

	calendars := api.Group("/calendars/:calendarID")
	{
		calendars.POST("/events", events.Create)
		calendars.POST("/events/batch", events.CreateBatch)
		calendars.GET("/events", events.List)
		calendars.DELETE("/events", events.DeleteBatch)
		calendars.POST("/events/clean", events.CleanOldEvents)
		calendars.GET("/conflict", events.CheckConflict)
		calendars.GET("/slots", events.AvailableSlots)
		calendars.GET("/stats", events.Stats)
	}

	api.GET("/events/:eventID", events.Get)
	api.PATCH("/events/:eventID", events.Update)
	api.DELETE("/events/:eventID", events.Delete)

	api.POST("/bookings", bookings.Book)
	api.GET("/bookings/:appointmentID", bookings.Get)
	api.PATCH("/bookings/:appointmentID/status", bookings.SetStatus)
	api.DELETE("/bookings/:appointmentID", bookings.Delete)

	api.GET("/clients/:clientID/bookings", bookings.ListByClient)
	api.GET("/professionals/:professionalID/bookings", bookings.ListByProfessional)
	api.GET("/professionals/:professionalID/bookings/upcoming", bookings.ListUpcoming)

	return r
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
