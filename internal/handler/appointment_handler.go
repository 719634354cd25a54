package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/reconcile"
	"ghl-sync-bridge/internal/store"
)

// appointmentRequest is the create and partial-update payload. Every field
// is optional at decode time; handlers decide what is required.
type appointmentRequest struct {
	CalendarID        *string `json:"calendarId"`
	ContactID         *string `json:"contactId"`
	StartTime         *string `json:"startTime"`
	EndTime           *string `json:"endTime"`
	LocationID        *string `json:"locationId"`
	AssignedUserID    *string `json:"assignedUserId"`
	Title             *string `json:"title"`
	AppointmentStatus *string `json:"appointmentStatus"`
	Notes             *string `json:"notes"`
}

// GET /appointments/
func (h *Handler) ListAppointments(c *gin.Context) {
	list, err := h.store.ListAppointments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /appointments/:id/
func (h *Handler) GetAppointment(c *gin.Context) {
	id := c.Param("id")
	a, err := h.store.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.fail(c, notFound(err, "appointment %s not found locally", id))
		return
	}
	c.JSON(http.StatusOK, a)
}

// POST /appointments/create/
func (h *Handler) CreateAppointment(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.requireClient(); err != nil {
		h.fail(c, err)
		return
	}
	var in appointmentRequest
	if err := bindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	required := []struct {
		name string
		v    *string
	}{
		{"calendarId", in.CalendarID},
		{"contactId", in.ContactID},
		{"startTime", in.StartTime},
		{"endTime", in.EndTime},
	}
	for _, f := range required {
		if reconcile.First(f.v) == nil {
			h.fail(c, apperr.MissingField(f.name))
			return
		}
	}
	start, err := h.parseTime("startTime", in.StartTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := h.parseTime("endTime", in.EndTime)
	if err != nil {
		h.fail(c, err)
		return
	}

	locationID := h.cfg.ResolveLocation(value(in.LocationID))
	if locationID == "" {
		h.fail(c, apperr.Invalid("locationId", "no locationId: send it in the payload or set GHL_LOCATION_ID"))
		return
	}
	assignedUserID := h.cfg.ResolveAssignedUser(value(in.AssignedUserID))
	if assignedUserID == "" {
		h.fail(c, apperr.Invalid("assignedUserId", "no assignedUserId: send it in the payload or set GHL_ASSIGNED_USER_ID"))
		return
	}

	payload := ghl.AppointmentRequest{
		CalendarID:               value(in.CalendarID),
		LocationID:               locationID,
		ContactID:                value(in.ContactID),
		StartTime:                value(in.StartTime),
		EndTime:                  value(in.EndTime),
		Title:                    valueOr(in.Title, store.DefaultTitle),
		AppointmentStatus:        valueOr(in.AppointmentStatus, store.DefaultStatus),
		AssignedUserID:           assignedUserID,
		Notes:                    reconcile.First(in.Notes),
		IgnoreFreeSlotValidation: true,
		ToNotify:                 true,
	}
	resp, err := h.client.CreateAppointment(ctx, locationID, payload)
	if err != nil {
		h.fail(c, upstream("create appointment", err))
		return
	}
	var body ghl.Appointment
	if err := resp.Decode(&body); err != nil {
		h.fail(c, apperr.Internalf(err, "platform returned an unreadable appointment"))
		return
	}

	a, err := h.rec.AppointmentCreated(ctx, &body, sentFields(payload, start, end))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// PUT /appointments/:id/update/
func (h *Handler) UpdateAppointment(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.requireClient(); err != nil {
		h.fail(c, err)
		return
	}
	id := c.Param("id")
	stored, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		h.fail(c, notFound(err, "appointment %s not found locally", id))
		return
	}
	var in appointmentRequest
	if err := bindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	locationID := h.cfg.ResolveLocation(stored.LocationID)
	if locationID == "" {
		h.fail(c, apperr.Invalid("locationId", "no locationId for appointment "+id))
		return
	}

	start, end := stored.StartTime, stored.EndTime
	startRaw, endRaw := formatTime(start), formatTime(end)
	if reconcile.First(in.StartTime) != nil {
		t, err := h.parseTime("startTime", in.StartTime)
		if err != nil {
			h.fail(c, err)
			return
		}
		start, startRaw = *t, value(in.StartTime)
	}
	if reconcile.First(in.EndTime) != nil {
		t, err := h.parseTime("endTime", in.EndTime)
		if err != nil {
			h.fail(c, err)
			return
		}
		end, endRaw = *t, value(in.EndTime)
	}

	assignedUserID := valueOr(reconcile.First(in.AssignedUserID, stored.AssignedUserID), h.cfg.DefaultAssignedUserID)
	payload := ghl.AppointmentRequest{
		CalendarID:               stored.CalendarID,
		LocationID:               locationID,
		ContactID:                stored.ContactID,
		StartTime:                startRaw,
		EndTime:                  endRaw,
		Title:                    valueOr(in.Title, stored.Title),
		AppointmentStatus:        valueOr(in.AppointmentStatus, stored.Status),
		AssignedUserID:           assignedUserID,
		Notes:                    reconcile.First(in.Notes, stored.Notes),
		IgnoreFreeSlotValidation: true,
		ToNotify:                 true,
	}
	resp, err := h.client.UpdateAppointment(ctx, locationID, id, payload)
	if err != nil {
		h.fail(c, upstream("update appointment", err))
		return
	}
	// 204 and non-JSON bodies fall back to what was sent
	var body ghl.Appointment
	if err := resp.Decode(&body); err != nil {
		h.log.WarnContext(ctx, "unreadable update response, using sent payload", "external_id", id, "error", err)
		body = ghl.Appointment{}
	}

	a, err := h.rec.AppointmentUpdated(ctx, id, &body, sentFields(payload, &start, &end))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DELETE /appointments/:id/delete/
func (h *Handler) DeleteAppointment(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.requireClient(); err != nil {
		h.fail(c, err)
		return
	}
	id := c.Param("id")
	stored, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		h.fail(c, notFound(err, "appointment %s not found locally", id))
		return
	}

	if _, err := h.client.CancelAppointment(ctx, h.cfg.ResolveLocation(stored.LocationID), id); err != nil {
		h.fail(c, upstream("cancel appointment", err))
		return
	}
	if _, err := h.rec.AppointmentCancelled(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled", "appointment": a})
}

func (h *Handler) parseTime(field string, s *string) (*time.Time, error) {
	t := reconcile.ParseTime(s, h.rec.Location())
	if t == nil {
		return nil, apperr.Invalid(field, field+" is not a valid ISO-8601 timestamp")
	}
	return t, nil
}

// sentFields exposes an outbound payload as the request provenance.
func sentFields(p ghl.AppointmentRequest, start, end *time.Time) reconcile.AppointmentFields {
	return reconcile.AppointmentFields{
		LocationID:     &p.LocationID,
		CalendarID:     &p.CalendarID,
		ContactID:      &p.ContactID,
		Title:          &p.Title,
		Status:         &p.AppointmentStatus,
		AssignedUserID: &p.AssignedUserID,
		Notes:          p.Notes,
		StartTime:      start,
		EndTime:        end,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func valueOr(s *string, fallback string) string {
	if v := value(s); v != "" {
		return v
	}
	return fallback
}
