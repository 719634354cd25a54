// Package handler holds the HTTP surface: CRUD endpoints that forward writes
// to the platform before mirroring them, and the public webhook receiver.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/config"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/reconcile"
	"ghl-sync-bridge/internal/store"
)

type Handler struct {
	cfg    *config.Config
	client *ghl.Client
	rec    *reconcile.Reconciler
	store  store.Store
	log    *slog.Logger
}

func New(cfg *config.Config, client *ghl.Client, rec *reconcile.Reconciler, st store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, client: client, rec: rec, store: st, log: logger}
}

// requireClient fails before any work when no platform token is configured.
func (h *Handler) requireClient() error {
	if !h.client.Configured() {
		return apperr.Configf("GHL_API_KEY is not configured on the server")
	}
	return nil
}

// bindJSON decodes the request body into v. An empty body decodes to the
// zero value so required-field checks can name what is missing.
func bindJSON(c *gin.Context, v any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return apperr.Invalid("", "could not read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Invalid("", "invalid JSON body: "+err.Error())
	}
	return nil
}

// Health reports whether the store answers.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.ErrorContext(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "platform_configured": h.client.Configured()})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf(format, args...)
	}
	return err
}
