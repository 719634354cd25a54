package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"ghl-sync-bridge/internal/model"
)

const contactColumns = `external_id, location_id, first_name, last_name, email, phone, source, created_at, updated_at`

func scanContact(row pgx.Row) (*model.Contact, error) {
	c := &model.Contact{}
	err := row.Scan(&c.ExternalID, &c.LocationID, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Postgres) GetContact(ctx context.Context, externalID string) (*model.Contact, error) {
	return scanContact(s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE external_id = $1`, externalID))
}

func (s *Postgres) ListContacts(ctx context.Context) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY created_at DESC, external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Postgres) UpsertContact(ctx context.Context, p model.ContactPatch) (*model.Contact, error) {
	return scanContact(s.pool.QueryRow(ctx,
		`INSERT INTO contacts (external_id, location_id, first_name, last_name, email, phone, source)
		 VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), $5, $6, $7)
		 ON CONFLICT (external_id) DO UPDATE SET
		   location_id = COALESCE($2, contacts.location_id),
		   first_name  = COALESCE($3, contacts.first_name),
		   last_name   = COALESCE($4, contacts.last_name),
		   email       = COALESCE($5, contacts.email),
		   phone       = COALESCE($6, contacts.phone),
		   source      = COALESCE($7, contacts.source),
		   updated_at  = NOW()
		 RETURNING `+contactColumns,
		p.ExternalID, p.LocationID, p.FirstName, p.LastName, p.Email, p.Phone, p.Source,
	))
}
