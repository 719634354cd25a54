package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"ghl-sync-bridge/internal/model"
)

const appointmentColumns = `external_id, location_id, calendar_id, contact_id, title, status,
	assigned_user_id, notes, start_time, end_time, source, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(
		&a.ExternalID, &a.LocationID, &a.CalendarID, &a.ContactID, &a.Title, &a.Status,
		&a.AssignedUserID, &a.Notes, &a.StartTime, &a.EndTime, &a.Source, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Postgres) GetAppointment(ctx context.Context, externalID string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE external_id = $1`, externalID))
}

func (s *Postgres) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments ORDER BY start_time DESC, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpsertAppointment overwrites only the columns whose patch value is
// non-nil. The UPDATE runs first so NOT NULL columns are never bound to a
// null candidate row; a missing row is inserted with column defaults and
// needs both times.
func (s *Postgres) UpsertAppointment(ctx context.Context, p model.AppointmentPatch) (*model.Appointment, error) {
	args := []any{
		p.ExternalID, p.LocationID, p.CalendarID, p.ContactID, p.Title, p.Status,
		p.AssignedUserID, p.Notes, p.StartTime, p.EndTime, p.Source, p.CreatedAt, p.UpdatedAt,
	}
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`UPDATE appointments SET `+appointmentAssignments+`
		 WHERE external_id = $1
		 RETURNING `+appointmentColumns, args...))
	if !errors.Is(err, ErrNotFound) {
		return a, err
	}
	if p.StartTime == nil || p.EndTime == nil {
		return nil, ErrMissingTimes
	}
	// a concurrent insert of the same id resolves through ON CONFLICT
	return scanAppointment(s.pool.QueryRow(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`)
		 VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''),
		         COALESCE($5, 'Appointment'), COALESCE($6, 'confirmed'),
		         $7, $8, $9, $10, $11, COALESCE($12, NOW()), COALESCE($13, NOW()))
		 ON CONFLICT (external_id) DO UPDATE SET `+appointmentAssignments+`
		 RETURNING `+appointmentColumns, args...))
}

const appointmentAssignments = `
	location_id      = COALESCE($2, appointments.location_id),
	calendar_id      = COALESCE($3, appointments.calendar_id),
	contact_id       = COALESCE($4, appointments.contact_id),
	title            = COALESCE($5, appointments.title),
	status           = COALESCE($6, appointments.status),
	assigned_user_id = COALESCE($7, appointments.assigned_user_id),
	notes            = COALESCE($8, appointments.notes),
	start_time       = COALESCE($9, appointments.start_time),
	end_time         = COALESCE($10, appointments.end_time),
	source           = COALESCE($11, appointments.source),
	created_at       = COALESCE($12, appointments.created_at),
	updated_at       = COALESCE($13, NOW())`

func (s *Postgres) CancelAppointment(ctx context.Context, externalID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = 'cancelled' WHERE external_id = $1`,
		externalID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
