package reconcile

import (
	"bytes"
	"encoding/json"
	"strings"

	"ghl-sync-bridge/internal/apperr"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/model"
)

const (
	EventAppointmentCreate = "AppointmentCreate"
	EventAppointmentUpdate = "AppointmentUpdate"
	EventAppointmentDelete = "AppointmentDelete"
)

type Action int

const (
	ActionIgnore Action = iota
	ActionUpsert
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionUpsert:
		return "upsert"
	case ActionCancel:
		return "cancel"
	default:
		return "ignore"
	}
}

// webhookRoot is the envelope layout. The appointment either sits under
// "appointment" or its fields are spread over the root itself.
type webhookRoot struct {
	Type        string          `json:"type"`
	LocationID  *string         `json:"locationId"`
	Appointment json.RawMessage `json:"appointment"`
}

// Event is a validated webhook notification.
type Event struct {
	Type        string
	ExternalID  string
	Nested      bool
	Appointment ghl.Appointment

	rootLocationID *string
}

// ParseEvent validates a webhook body. headerType is used when the body does
// not declare its own type.
func ParseEvent(body []byte, headerType string) (*Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, apperr.Invalid("appointment.id", "invalid payload: expected a JSON object")
	}
	var root webhookRoot
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, apperr.Invalid("appointment.id", "invalid payload: "+err.Error())
	}

	ev := &Event{Type: strings.TrimSpace(root.Type), rootLocationID: root.LocationID}
	if ev.Type == "" {
		ev.Type = strings.TrimSpace(headerType)
	}

	data := trimmed
	if len(root.Appointment) > 0 {
		nested := bytes.TrimSpace(root.Appointment)
		if len(nested) == 0 || nested[0] != '{' {
			return nil, apperr.Invalid("appointment.id", "invalid payload: appointment is not an object")
		}
		data = nested
		ev.Nested = true
	}
	if err := json.Unmarshal(data, &ev.Appointment); err != nil {
		return nil, apperr.Invalid("appointment.id", "invalid payload: "+err.Error())
	}
	if id := First(ev.Appointment.ID); id != nil {
		ev.ExternalID = *id
	}
	if ev.ExternalID == "" {
		return nil, apperr.Invalid("appointment.id", "invalid payload: appointment.id not found")
	}
	return ev, nil
}

// Action classifies the event. A delete type and a cancelled status each
// independently mean cancel. Types match exactly.
func (e *Event) Action() Action {
	if e.Type == EventAppointmentDelete {
		return ActionCancel
	}
	if s := First(e.Appointment.AppointmentStatus); s != nil && *s == model.StatusCancelled {
		return ActionCancel
	}
	switch {
	case e.Type == EventAppointmentCreate, e.Type == EventAppointmentUpdate:
		return ActionUpsert
	case e.Type == "":
		// untyped payloads carrying an id are treated as upserts
		return ActionUpsert
	default:
		return ActionIgnore
	}
}

// LocationID resolves root field, then nested field, then fallback.
func (e *Event) LocationID(fallback string) string {
	if v := First(e.rootLocationID, e.Appointment.LocationID); v != nil {
		return *v
	}
	return fallback
}
