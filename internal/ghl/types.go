package ghl

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// AppointmentRequest is the body sent to create or update an appointment.
type AppointmentRequest struct {
	CalendarID               string  `json:"calendarId,omitempty"`
	LocationID               string  `json:"locationId,omitempty"`
	ContactID                string  `json:"contactId,omitempty"`
	StartTime                string  `json:"startTime,omitempty"`
	EndTime                  string  `json:"endTime,omitempty"`
	Title                    string  `json:"title,omitempty"`
	AppointmentStatus        string  `json:"appointmentStatus,omitempty"`
	AssignedUserID           string  `json:"assignedUserId,omitempty"`
	Notes                    *string `json:"notes,omitempty"`
	IgnoreFreeSlotValidation bool    `json:"ignoreFreeSlotValidation"`
	ToNotify                 bool    `json:"toNotify"`
}

type ContactRequest struct {
	LocationID string   `json:"locationId"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Email      *string  `json:"email,omitempty"`
	Phone      *string  `json:"phone,omitempty"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Appointment is the platform's appointment shape, used both for write
// responses and webhook payloads. Every field is optional.
type Appointment struct {
	ID                *string `json:"id"`
	LocationID        *string `json:"locationId"`
	CalendarID        *string `json:"calendarId"`
	ContactID         *string `json:"contactId"`
	Title             *string `json:"title"`
	AppointmentStatus *string `json:"appointmentStatus"`
	AssignedUserID    *string `json:"assignedUserId"`
	Notes             *string `json:"notes"`
	StartTime         *string `json:"startTime"`
	EndTime           *string `json:"endTime"`
	Source            *string `json:"source"`
	DateAdded         *string `json:"dateAdded"`
	DateUpdated       *string `json:"dateUpdated"`
}

type Contact struct {
	ID         *string `json:"id"`
	LocationID *string `json:"locationId"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Source     *string `json:"source"`
}

// ContactEnvelope wraps the create-contact response.
type ContactEnvelope struct {
	Contact *Contact `json:"contact"`
}

// DuplicateContact describes the platform's rejection of a contact that
// matches an existing one.
type DuplicateContact struct {
	ExistingID    string
	MatchingField string
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
	Meta    struct {
		ContactID     string `json:"contactId"`
		MatchingField string `json:"matchingField"`
	} `json:"meta"`
}

// ParseDuplicateContact recognizes a duplicate-contact rejection. The ids are
// empty when the body says "duplicated" but carries no structured meta.
func ParseDuplicateContact(err error) (DuplicateContact, bool) {
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusBadRequest {
		return DuplicateContact{}, false
	}
	text := string(he.Body)
	mentions := strings.Contains(text, "duplicated contacts") || strings.Contains(text, "does not allow duplicated")

	var eb errorBody
	if json.Unmarshal(he.Body, &eb) != nil {
		if mentions {
			return DuplicateContact{}, true
		}
		return DuplicateContact{}, false
	}
	if eb.Meta.ContactID == "" && !mentions {
		return DuplicateContact{}, false
	}
	return DuplicateContact{ExistingID: eb.Meta.ContactID, MatchingField: eb.Meta.MatchingField}, true
}
