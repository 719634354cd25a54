package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ghl-sync-bridge/internal/model"
)

//go:embed migrations/sqlite.sql
var sqliteSchema string

// SQLite keeps every timestamp in UTC so lexical column order matches
// chronological order.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: %w", err)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanSQLiteAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	a := &model.Appointment{}
	var assigned, notes, source sql.NullString
	err := row.Scan(
		&a.ExternalID, &a.LocationID, &a.CalendarID, &a.ContactID, &a.Title, &a.Status,
		&assigned, &notes, &a.StartTime, &a.EndTime, &source, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.AssignedUserID = nullString(assigned)
	a.Notes = nullString(notes)
	a.Source = nullString(source)
	return a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func (s *SQLite) GetAppointment(ctx context.Context, externalID string) (*model.Appointment, error) {
	return scanSQLiteAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE external_id = ?`, externalID))
}

func (s *SQLite) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments ORDER BY start_time DESC, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanSQLiteAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpsertAppointment updates in place when the row exists, so nil patch
// fields keep their stored values even for NOT NULL columns. Only a missing
// row goes through INSERT, which needs both times. Numbered ?NNN parameters
// let each value be referenced twice.
func (s *SQLite) UpsertAppointment(ctx context.Context, p model.AppointmentPatch) (*model.Appointment, error) {
	args := []any{
		p.ExternalID, p.LocationID, p.CalendarID, p.ContactID, p.Title, p.Status,
		p.AssignedUserID, p.Notes, utcPtr(p.StartTime), utcPtr(p.EndTime), p.Source,
		utcPtr(p.CreatedAt), utcPtr(p.UpdatedAt), time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE appointments SET
		   location_id      = COALESCE(?2, location_id),
		   calendar_id      = COALESCE(?3, calendar_id),
		   contact_id       = COALESCE(?4, contact_id),
		   title            = COALESCE(?5, title),
		   status           = COALESCE(?6, status),
		   assigned_user_id = COALESCE(?7, assigned_user_id),
		   notes            = COALESCE(?8, notes),
		   start_time       = COALESCE(?9, start_time),
		   end_time         = COALESCE(?10, end_time),
		   source           = COALESCE(?11, source),
		   created_at       = COALESCE(?12, created_at),
		   updated_at       = COALESCE(?13, ?14)
		 WHERE external_id = ?1`, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if p.StartTime == nil || p.EndTime == nil {
			return nil, ErrMissingTimes
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO appointments (`+appointmentColumns+`)
			 VALUES (?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''),
			         COALESCE(?5, 'Appointment'), COALESCE(?6, 'confirmed'),
			         ?7, ?8, ?9, ?10, ?11, COALESCE(?12, ?14), COALESCE(?13, ?14))`, args...)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetAppointment(ctx, p.ExternalID)
}

func (s *SQLite) CancelAppointment(ctx context.Context, externalID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = 'cancelled' WHERE external_id = ?`, externalID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanSQLiteContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	c := &model.Contact{}
	var email, phone, source sql.NullString
	err := row.Scan(&c.ExternalID, &c.LocationID, &c.FirstName, &c.LastName,
		&email, &phone, &source, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Email = nullString(email)
	c.Phone = nullString(phone)
	c.Source = nullString(source)
	return c, nil
}

func (s *SQLite) GetContact(ctx context.Context, externalID string) (*model.Contact, error) {
	return scanSQLiteContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE external_id = ?`, externalID))
}

func (s *SQLite) ListContacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Contact{}
	for rows.Next() {
		c, err := scanSQLiteContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertContact(ctx context.Context, p model.ContactPatch) (*model.Contact, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+contactColumns+`)
		 VALUES (?1, COALESCE(?2, ''), COALESCE(?3, ''), COALESCE(?4, ''), ?5, ?6, ?7, ?8, ?8)
		 ON CONFLICT (external_id) DO UPDATE SET
		   location_id = COALESCE(?2, location_id),
		   first_name  = COALESCE(?3, first_name),
		   last_name   = COALESCE(?4, last_name),
		   email       = COALESCE(?5, email),
		   phone       = COALESCE(?6, phone),
		   source      = COALESCE(?7, source),
		   updated_at  = ?8`,
		p.ExternalID, p.LocationID, p.FirstName, p.LastName, p.Email, p.Phone, p.Source, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	return s.GetContact(ctx, p.ExternalID)
}
