// Package reconcile merges the provenances of a record (platform response or
// webhook body, stored local row, original request, fixed defaults) into the
// patch that is written to the local mirror.
package reconcile

import (
	"strings"
	"time"

	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/model"
	"ghl-sync-bridge/internal/store"
)

// First returns the first source holding a non-blank value.
func First(sources ...*string) *string {
	for _, s := range sources {
		if s != nil && strings.TrimSpace(*s) != "" {
			v := *s
			return &v
		}
	}
	return nil
}

func FirstTime(sources ...*time.Time) *time.Time {
	for _, t := range sources {
		if t != nil && !t.IsZero() {
			v := *t
			return &v
		}
	}
	return nil
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTime parses an ISO-8601 instant. Input without an offset is read in
// loc. Absent or unparseable input yields nil.
func ParseTime(s *string, loc *time.Location) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	if len(v) > 10 && v[10] == ' ' {
		v = v[:10] + "T" + v[11:]
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t
		}
	}
	return nil
}

// AppointmentFields is one provenance of an appointment. Nil means the
// provenance has no value for that field.
type AppointmentFields struct {
	LocationID     *string
	CalendarID     *string
	ContactID      *string
	Title          *string
	Status         *string
	AssignedUserID *string
	Notes          *string
	Source         *string
	StartTime      *time.Time
	EndTime        *time.Time
	CreatedAt      *time.Time
	UpdatedAt      *time.Time
}

func FromPlatformAppointment(a *ghl.Appointment, loc *time.Location) AppointmentFields {
	if a == nil {
		return AppointmentFields{}
	}
	return AppointmentFields{
		LocationID:     a.LocationID,
		CalendarID:     a.CalendarID,
		ContactID:      a.ContactID,
		Title:          a.Title,
		Status:         a.AppointmentStatus,
		AssignedUserID: a.AssignedUserID,
		Notes:          a.Notes,
		Source:         a.Source,
		StartTime:      ParseTime(a.StartTime, loc),
		EndTime:        ParseTime(a.EndTime, loc),
		CreatedAt:      ParseTime(a.DateAdded, loc),
		UpdatedAt:      ParseTime(a.DateUpdated, loc),
	}
}

// FromStoredAppointment exposes a local row as a provenance. Bookkeeping
// timestamps are left out so the store keeps managing them.
func FromStoredAppointment(a *model.Appointment) AppointmentFields {
	if a == nil {
		return AppointmentFields{}
	}
	start, end := a.StartTime, a.EndTime
	return AppointmentFields{
		LocationID:     &a.LocationID,
		CalendarID:     &a.CalendarID,
		ContactID:      &a.ContactID,
		Title:          &a.Title,
		Status:         &a.Status,
		AssignedUserID: a.AssignedUserID,
		Notes:          a.Notes,
		Source:         a.Source,
		StartTime:      &start,
		EndTime:        &end,
	}
}

func AppointmentDefaults() AppointmentFields {
	title, status := store.DefaultTitle, store.DefaultStatus
	return AppointmentFields{Title: &title, Status: &status}
}

// MergeAppointment resolves each field from the sources in order.
func MergeAppointment(externalID string, sources ...AppointmentFields) model.AppointmentPatch {
	pick := func(get func(AppointmentFields) *string) *string {
		vals := make([]*string, len(sources))
		for i, s := range sources {
			vals[i] = get(s)
		}
		return First(vals...)
	}
	pickTime := func(get func(AppointmentFields) *time.Time) *time.Time {
		vals := make([]*time.Time, len(sources))
		for i, s := range sources {
			vals[i] = get(s)
		}
		return FirstTime(vals...)
	}
	return model.AppointmentPatch{
		ExternalID:     externalID,
		LocationID:     pick(func(f AppointmentFields) *string { return f.LocationID }),
		CalendarID:     pick(func(f AppointmentFields) *string { return f.CalendarID }),
		ContactID:      pick(func(f AppointmentFields) *string { return f.ContactID }),
		Title:          pick(func(f AppointmentFields) *string { return f.Title }),
		Status:         pick(func(f AppointmentFields) *string { return f.Status }),
		AssignedUserID: pick(func(f AppointmentFields) *string { return f.AssignedUserID }),
		Notes:          pick(func(f AppointmentFields) *string { return f.Notes }),
		Source:         pick(func(f AppointmentFields) *string { return f.Source }),
		StartTime:      pickTime(func(f AppointmentFields) *time.Time { return f.StartTime }),
		EndTime:        pickTime(func(f AppointmentFields) *time.Time { return f.EndTime }),
		CreatedAt:      pickTime(func(f AppointmentFields) *time.Time { return f.CreatedAt }),
		UpdatedAt:      pickTime(func(f AppointmentFields) *time.Time { return f.UpdatedAt }),
	}
}

type ContactFields struct {
	LocationID *string
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	Source     *string
}

func FromPlatformContact(c *ghl.Contact) ContactFields {
	if c == nil {
		return ContactFields{}
	}
	return ContactFields{
		LocationID: c.LocationID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		Source:     c.Source,
	}
}

func FromStoredContact(c *model.Contact) ContactFields {
	if c == nil {
		return ContactFields{}
	}
	return ContactFields{
		LocationID: &c.LocationID,
		FirstName:  &c.FirstName,
		LastName:   &c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		Source:     c.Source,
	}
}

func ContactDefaults() ContactFields {
	source := store.DefaultContactSource
	return ContactFields{Source: &source}
}

func MergeContact(externalID string, sources ...ContactFields) model.ContactPatch {
	pick := func(get func(ContactFields) *string) *string {
		vals := make([]*string, len(sources))
		for i, s := range sources {
			vals[i] = get(s)
		}
		return First(vals...)
	}
	return model.ContactPatch{
		ExternalID: externalID,
		LocationID: pick(func(f ContactFields) *string { return f.LocationID }),
		FirstName:  pick(func(f ContactFields) *string { return f.FirstName }),
		LastName:   pick(func(f ContactFields) *string { return f.LastName }),
		Email:      pick(func(f ContactFields) *string { return f.Email }),
		Phone:      pick(func(f ContactFields) *string { return f.Phone }),
		Source:     pick(func(f ContactFields) *string { return f.Source }),
	}
}
