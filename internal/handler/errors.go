package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/ghl"
)

// upstream turns client outcomes into the error taxonomy.
func upstream(op string, err error) error {
	var he *ghl.HTTPError
	var ce *ghl.ConnectionError
	switch {
	case errors.Is(err, ghl.ErrNotConfigured):
		return apperr.Configf("GHL_API_KEY is not configured on the server")
	case errors.As(err, &he):
		return apperr.Upstream("platform rejected "+op, he.Status, string(he.Body))
	case errors.As(err, &ce):
		return apperr.Connection("platform unreachable during "+op, ce.Err)
	}
	return err
}

// fail writes err as {"error", "details", "field"} with its mapped status.
func (h *Handler) fail(c *gin.Context, err error) {
	e := apperr.From(err)
	status := e.HTTPStatus()

	body := gin.H{"error": e.Message}
	if e.Details != "" {
		body["details"] = e.Details
	}
	if e.Field != "" {
		body["field"] = e.Field
	}
	if e.Kind == apperr.Conflict {
		body["existing_contact_id"] = e.ExistingID
		body["duplicate_field"] = e.Field
	}

	ctx := c.Request.Context()
	if status >= 500 {
		h.log.ErrorContext(ctx, "request failed", "kind", e.Kind.String(), "status", status, "error", err)
	} else {
		h.log.WarnContext(ctx, "request rejected", "kind", e.Kind.String(), "status", status, "error", e.Message)
	}
	c.AbortWithStatusJSON(status, body)
}
