package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/model"
	"ghl-sync-bridge/internal/store"
)

// Reconciler applies merged records to the local store.
type Reconciler struct {
	store store.Store
	loc   *time.Location
	log   *slog.Logger
}

func New(st store.Store, loc *time.Location, logger *slog.Logger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, loc: loc, log: logger}
}

// Location is the zone naive timestamps are read in.
func (r *Reconciler) Location() *time.Location { return r.loc }

func (r *Reconciler) existingAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := r.store.GetAppointment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment %s: %w", id, err)
	}
	return a, nil
}

// AppointmentCreated mirrors a successful platform create. Precedence per
// field: response body, stored row, request, defaults.
func (r *Reconciler) AppointmentCreated(ctx context.Context, body *ghl.Appointment, req AppointmentFields) (*model.Appointment, error) {
	var id *string
	if body != nil {
		id = First(body.ID)
	}
	if id == nil {
		return nil, apperr.Internalf(nil, "platform response did not include an appointment id")
	}
	stored, err := r.existingAppointment(ctx, *id)
	if err != nil {
		return nil, err
	}
	p := MergeAppointment(*id,
		FromPlatformAppointment(body, r.loc),
		FromStoredAppointment(stored),
		req,
		AppointmentDefaults(),
	)
	// bookkeeping timestamps from a write response are not authoritative
	p.CreatedAt, p.UpdatedAt = nil, nil
	if stored == nil {
		if err := requireInsertable(p); err != nil {
			return nil, err
		}
	}
	return r.store.UpsertAppointment(ctx, p)
}

// AppointmentUpdated mirrors a successful platform update. sent is the
// outbound payload, which already layers the request over the stored row;
// the response body wins where it has a value.
func (r *Reconciler) AppointmentUpdated(ctx context.Context, externalID string, body *ghl.Appointment, sent AppointmentFields) (*model.Appointment, error) {
	p := MergeAppointment(externalID, FromPlatformAppointment(body, r.loc), sent)
	p.CreatedAt, p.UpdatedAt = nil, nil
	return r.store.UpsertAppointment(ctx, p)
}

// AppointmentCancelled marks the local row cancelled. Nothing else changes.
func (r *Reconciler) AppointmentCancelled(ctx context.Context, externalID string) (bool, error) {
	ok, err := r.store.CancelAppointment(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("cancel appointment %s: %w", externalID, err)
	}
	return ok, nil
}

// ContactCreated mirrors a successful platform contact create.
func (r *Reconciler) ContactCreated(ctx context.Context, body *ghl.Contact, req ContactFields) (*model.Contact, error) {
	var id *string
	if body != nil {
		id = First(body.ID)
	}
	if id == nil {
		return nil, apperr.Internalf(nil, "platform did not return a valid contact id")
	}
	stored, err := r.store.GetContact(ctx, *id)
	if errors.Is(err, store.ErrNotFound) {
		stored = nil
	} else if err != nil {
		return nil, fmt.Errorf("load contact %s: %w", *id, err)
	}
	p := MergeContact(*id, FromPlatformContact(body), FromStoredContact(stored), req, ContactDefaults())
	return r.store.UpsertContact(ctx, p)
}

// Outcome reports what a webhook event did to the store.
type Outcome struct {
	Status     string // created, updated, cancelled, ignored
	ExternalID string
	EventType  string
}

// ApplyEvent runs one webhook event through received → validated →
// create|update|cancel|ignored. fallbackLocation is the configured default.
func (r *Reconciler) ApplyEvent(ctx context.Context, ev *Event, fallbackLocation string) (Outcome, error) {
	out := Outcome{ExternalID: ev.ExternalID, EventType: ev.Type}

	switch ev.Action() {
	case ActionCancel:
		found, err := r.AppointmentCancelled(ctx, ev.ExternalID)
		if err != nil {
			return out, err
		}
		r.log.InfoContext(ctx, "webhook cancelled appointment", "external_id", ev.ExternalID, "found", found, "type", ev.Type)
		out.Status = "cancelled"
		return out, nil

	case ActionUpsert:
		stored, err := r.existingAppointment(ctx, ev.ExternalID)
		if err != nil {
			return out, err
		}
		body := FromPlatformAppointment(&ev.Appointment, r.loc)
		if loc := ev.LocationID(""); loc != "" {
			body.LocationID = &loc
		}
		defaults := AppointmentDefaults()
		if fallbackLocation != "" {
			defaults.LocationID = &fallbackLocation
		}
		p := MergeAppointment(ev.ExternalID, body, FromStoredAppointment(stored), defaults)
		if stored == nil {
			if err := requireInsertable(p); err != nil {
				return out, err
			}
		} else if !changes(p, stored) {
			// replayed event: nothing to write
			out.Status = "updated"
			r.log.DebugContext(ctx, "webhook event already applied", "external_id", ev.ExternalID, "type", ev.Type)
			return out, nil
		}
		if _, err := r.store.UpsertAppointment(ctx, p); err != nil {
			return out, fmt.Errorf("upsert appointment %s: %w", ev.ExternalID, err)
		}
		out.Status = "updated"
		if stored == nil {
			out.Status = "created"
		}
		r.log.InfoContext(ctx, "webhook synced appointment", "external_id", ev.ExternalID, "status", out.Status, "type", ev.Type)
		return out, nil

	default:
		r.log.WarnContext(ctx, "webhook event ignored", "external_id", ev.ExternalID, "type", ev.Type)
		out.Status = "ignored"
		return out, nil
	}
}

// requireInsertable rejects a new row missing columns the mirror cannot
// default.
func requireInsertable(p model.AppointmentPatch) error {
	if p.StartTime == nil {
		return apperr.MissingField("startTime")
	}
	if p.EndTime == nil {
		return apperr.MissingField("endTime")
	}
	return nil
}

// changes reports whether applying p would alter the stored row.
func changes(p model.AppointmentPatch, a *model.Appointment) bool {
	differs := func(v *string, cur string) bool { return v != nil && *v != cur }
	differsOpt := func(v, cur *string) bool { return v != nil && (cur == nil || *v != *cur) }
	differsTime := func(v *time.Time, cur time.Time) bool { return v != nil && !v.Equal(cur) }

	return differs(p.LocationID, a.LocationID) ||
		differs(p.CalendarID, a.CalendarID) ||
		differs(p.ContactID, a.ContactID) ||
		differs(p.Title, a.Title) ||
		differs(p.Status, a.Status) ||
		differsOpt(p.AssignedUserID, a.AssignedUserID) ||
		differsOpt(p.Notes, a.Notes) ||
		differsOpt(p.Source, a.Source) ||
		differsTime(p.StartTime, a.StartTime) ||
		differsTime(p.EndTime, a.EndTime) ||
		differsTime(p.CreatedAt, a.CreatedAt) ||
		differsTime(p.UpdatedAt, a.UpdatedAt)
}
