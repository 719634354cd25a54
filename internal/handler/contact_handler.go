package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/reconcile"
	"ghl-sync-bridge/internal/store"
)

type contactRequest struct {
	FirstName  *string  `json:"firstName"`
	LastName   *string  `json:"lastName"`
	Email      *string  `json:"email"`
	Phone      *string  `json:"phone"`
	LocationID *string  `json:"locationId"`
	Source     *string  `json:"source"`
	Tags       []string `json:"tags"`
}

// GET /contacts/
func (h *Handler) ListContacts(c *gin.Context) {
	list, err := h.store.ListContacts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /contacts/:id/
func (h *Handler) GetContact(c *gin.Context) {
	id := c.Param("id")
	ct, err := h.store.GetContact(c.Request.Context(), id)
	if err != nil {
		h.fail(c, notFound(err, "contact %s not found locally", id))
		return
	}
	c.JSON(http.StatusOK, ct)
}

// POST /contacts/create/
func (h *Handler) CreateContact(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.requireClient(); err != nil {
		h.fail(c, err)
		return
	}
	var in contactRequest
	if err := bindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	if reconcile.First(in.FirstName) == nil {
		h.fail(c, apperr.MissingField("firstName"))
		return
	}
	if reconcile.First(in.LastName) == nil {
		h.fail(c, apperr.MissingField("lastName"))
		return
	}
	locationID := h.cfg.ResolveLocation(value(in.LocationID))
	if locationID == "" {
		h.fail(c, apperr.Invalid("locationId", "no locationId: send it in the payload or set GHL_LOCATION_ID"))
		return
	}

	payload := ghl.ContactRequest{
		LocationID: locationID,
		FirstName:  value(in.FirstName),
		LastName:   value(in.LastName),
		Email:      reconcile.First(in.Email),
		Phone:      reconcile.First(in.Phone),
		Source:     valueOr(in.Source, store.DefaultContactSource),
		Tags:       in.Tags,
	}
	resp, err := h.client.CreateContact(ctx, locationID, payload)
	if err != nil {
		if dup, ok := ghl.ParseDuplicateContact(err); ok {
			h.fail(c, apperr.DuplicateContact(dup.ExistingID, dup.MatchingField))
			return
		}
		h.fail(c, upstream("create contact", err))
		return
	}
	var env ghl.ContactEnvelope
	if err := resp.Decode(&env); err != nil {
		h.fail(c, apperr.Internalf(err, "platform returned an unreadable contact"))
		return
	}

	ct, err := h.rec.ContactCreated(ctx, env.Contact, reconcile.ContactFields{
		LocationID: &payload.LocationID,
		FirstName:  &payload.FirstName,
		LastName:   &payload.LastName,
		Email:      payload.Email,
		Phone:      payload.Phone,
		Source:     &payload.Source,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "contact created", "contact": ct})
}
