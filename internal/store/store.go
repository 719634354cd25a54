// Package store persists the local mirror of platform contacts and
// appointments, keyed by external id.
//
// Writes are upserts with partial-update semantics: nil patch fields never
// overwrite stored values. There is no version check, so concurrent writes to
// the same external id resolve as last write wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ghl-sync-bridge/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// ErrMissingTimes is returned when an upsert would insert an appointment
// without both start and end time.
var ErrMissingTimes = errors.New("store: new appointment needs start and end time")

// Column defaults applied when an upsert inserts a new row.
const (
	DefaultTitle         = "Appointment"
	DefaultStatus        = model.StatusConfirmed
	DefaultContactSource = "API"
)

type Store interface {
	GetAppointment(ctx context.Context, externalID string) (*model.Appointment, error)
	// ListAppointments orders by start_time descending.
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	UpsertAppointment(ctx context.Context, p model.AppointmentPatch) (*model.Appointment, error)
	// CancelAppointment sets status to cancelled and touches nothing else.
	// It reports whether a row existed.
	CancelAppointment(ctx context.Context, externalID string) (bool, error)

	GetContact(ctx context.Context, externalID string) (*model.Contact, error)
	// ListContacts orders by created_at descending.
	ListContacts(ctx context.Context) ([]model.Contact, error)
	UpsertContact(ctx context.Context, p model.ContactPatch) (*model.Contact, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open builds a store from a DSN: postgres://, sqlite://<path>, or memory://.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemory(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemory(), nil
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	case "sqlite", "sqlite3", "file":
		return OpenSQLite(sqlitePath(parsed))
	default:
		return nil, fmt.Errorf("store: unsupported scheme %q", parsed.Scheme)
	}
}

func sqlitePath(u *url.URL) string {
	// sqlite:relative.db
	path := u.Opaque
	if path == "" {
		path = u.Host + u.Path
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

func ptrOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
