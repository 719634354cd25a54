package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/reconcile"
)

const (
	EventHeader     = "X-GHL-Event"
	maxWebhookBytes = 1 << 20
)

// POST /webhook/ghl/
func (h *Handler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.fail(c, apperr.Invalid("", "could not read webhook body: "+err.Error()))
		return
	}
	ev, err := reconcile.ParseEvent(body, c.GetHeader(EventHeader))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.DebugContext(ctx, "webhook received", "external_id", ev.ExternalID, "type", ev.Type, "action", ev.Action().String(), "nested", ev.Nested)

	out, err := h.rec.ApplyEvent(ctx, ev, h.cfg.DefaultLocationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if out.Status == "ignored" {
		c.JSON(http.StatusOK, gin.H{"status": out.Status, "event_type": out.EventType})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": out.Status, "external_id": out.ExternalID})
}
