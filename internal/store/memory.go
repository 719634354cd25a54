package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ghl-sync-bridge/internal/model"
)

// Memory is a process-local store used for tests and DATABASE_URL=memory://.
type Memory struct {
	mu           sync.Mutex
	appointments map[string]model.Appointment
	contacts     map[string]model.Contact
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		appointments: map[string]model.Appointment{},
		contacts:     map[string]model.Contact{},
		now:          time.Now,
	}
}

func (m *Memory) GetAppointment(_ context.Context, externalID string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) ListAppointments(_ context.Context) ([]model.Appointment, error) {
	m.mu.Lock()
	out := make([]model.Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		out = append(out, a)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

func (m *Memory) UpsertAppointment(_ context.Context, p model.AppointmentPatch) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	a, exists := m.appointments[p.ExternalID]
	if !exists {
		if p.StartTime == nil || p.EndTime == nil {
			return nil, ErrMissingTimes
		}
		a = model.Appointment{
			ExternalID: p.ExternalID,
			LocationID: ptrOr(p.LocationID, ""),
			CalendarID: ptrOr(p.CalendarID, ""),
			ContactID:  ptrOr(p.ContactID, ""),
			Title:      ptrOr(p.Title, DefaultTitle),
			Status:     ptrOr(p.Status, DefaultStatus),
			CreatedAt:  now,
		}
	} else {
		setString(&a.LocationID, p.LocationID)
		setString(&a.CalendarID, p.CalendarID)
		setString(&a.ContactID, p.ContactID)
		setString(&a.Title, p.Title)
		setString(&a.Status, p.Status)
	}
	setOptional(&a.AssignedUserID, p.AssignedUserID)
	setOptional(&a.Notes, p.Notes)
	setOptional(&a.Source, p.Source)
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.CreatedAt != nil {
		a.CreatedAt = *p.CreatedAt
	}
	a.UpdatedAt = now
	if p.UpdatedAt != nil {
		a.UpdatedAt = *p.UpdatedAt
	}

	m.appointments[p.ExternalID] = a
	return &a, nil
}

func (m *Memory) CancelAppointment(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[externalID]
	if !ok {
		return false, nil
	}
	a.Status = model.StatusCancelled
	m.appointments[externalID] = a
	return true, nil
}

func (m *Memory) GetContact(_ context.Context, externalID string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListContacts(_ context.Context) ([]model.Contact, error) {
	m.mu.Lock()
	out := make([]model.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, c)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

func (m *Memory) UpsertContact(_ context.Context, p model.ContactPatch) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, exists := m.contacts[p.ExternalID]
	if !exists {
		c = model.Contact{
			ExternalID: p.ExternalID,
			LocationID: ptrOr(p.LocationID, ""),
			FirstName:  ptrOr(p.FirstName, ""),
			LastName:   ptrOr(p.LastName, ""),
			CreatedAt:  now,
		}
	} else {
		setString(&c.LocationID, p.LocationID)
		setString(&c.FirstName, p.FirstName)
		setString(&c.LastName, p.LastName)
	}
	setOptional(&c.Email, p.Email)
	setOptional(&c.Phone, p.Phone)
	setOptional(&c.Source, p.Source)
	c.UpdatedAt = now

	m.contacts[p.ExternalID] = c
	return &c, nil
}

func (m *Memory) Migrate(context.Context) error { return nil }
func (m *Memory) Ping(context.Context) error    { return nil }
func (m *Memory) Close()                        {}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setOptional(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}
