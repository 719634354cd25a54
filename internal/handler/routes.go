package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"ghl-sync-bridge/internal/middleware"
)

type RouterOptions struct {
	// API routes require a bearer JWT when set. The webhook stays public.
	JWTSecret string
	// Webhook ingress limiter; nil disables limiting.
	Limiter *middleware.RateLimiter
	// Service name for request spans; empty disables tracing middleware.
	TraceService string
	Logger       *slog.Logger
}

func (h *Handler) Router(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = h.log
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.ErrorContext(c.Request.Context(), "panic", "error", rec, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": fmt.Sprint(rec)})
	}))
	r.Use(middleware.RequestID(), middleware.AccessLog(logger))
	if opts.TraceService != "" {
		r.Use(otelgin.Middleware(opts.TraceService))
	}

	r.GET("/health", h.Health)

	hook := []gin.HandlerFunc{}
	if opts.Limiter != nil {
		hook = append(hook, middleware.RateLimit(opts.Limiter))
	}
	r.POST("/webhook/ghl/", append(hook, h.Webhook)...)

	api := r.Group("")
	if opts.JWTSecret != "" {
		api.Use(middleware.JWTAuth(opts.JWTSecret))
	}
	{
		api.GET("/contacts/", h.ListContacts)
		api.POST("/contacts/create/", h.CreateContact)
		api.GET("/contacts/:id/", h.GetContact)

		api.GET("/appointments/", h.ListAppointments)
		api.POST("/appointments/create/", h.CreateAppointment)
		api.GET("/appointments/:id/", h.GetAppointment)
		api.PUT("/appointments/:id/update/", h.UpdateAppointment)
		api.DELETE("/appointments/:id/delete/", h.DeleteAppointment)
	}
	return r
}
