package model

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

type Contact struct {
	ExternalID string    `json:"external_id"`
	LocationID string    `json:"location_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      *string   `json:"email"`
	Phone      *string   `json:"phone"`
	Source     *string   `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Appointment struct {
	ExternalID     string    `json:"external_id"`
	LocationID     string    `json:"location_id"`
	CalendarID     string    `json:"calendar_id"`
	ContactID      string    `json:"contact_id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	AssignedUserID *string   `json:"assigned_user_id"`
	Notes          *string   `json:"notes"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Source         *string   `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AppointmentPatch is an upsert keyed by ExternalID. Nil fields keep the
// stored value on update; on insert the store applies column defaults.
type AppointmentPatch struct {
	ExternalID     string
	LocationID     *string
	CalendarID     *string
	ContactID      *string
	Title          *string
	Status         *string
	AssignedUserID *string
	Notes          *string
	StartTime      *time.Time
	EndTime        *time.Time
	Source         *string
	CreatedAt      *time.Time
	UpdatedAt      *time.Time
}

type ContactPatch struct {
	ExternalID string
	LocationID *string
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	Source     *string
}
