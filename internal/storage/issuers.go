package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
)

const issuerColumns = `id, tax_id, name, contact_email, created_at`

func scanIssuer(row interface{ Scan(...any) error }) (*model.Issuer, error) {
	var i model.Issuer
	if err := row.Scan(&i.ID, &i.TaxID, &i.Name, &i.ContactEmail, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// UpsertIssuer returns the issuer with the given tax id, creating it with
// name when it does not exist yet. An existing issuer keeps its name. Both
// arguments are trimmed; a blank name falls back to the tax id.
func (s *SQLStorage) UpsertIssuer(ctx context.Context, taxID, name string) (*model.Issuer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	taxID = strings.TrimSpace(taxID)
	if err := validateString(taxID, "taxID"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = taxID
	}

	if _, err := s.exec(ctx, `
		INSERT INTO issuers (tax_id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (tax_id) DO NOTHING`,
		taxID, name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to upsert issuer: %w", err)
	}

	issuer, err := scanIssuer(s.queryRow(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE tax_id = ?`, taxID))
	if err != nil {
		return nil, fmt.Errorf("failed to load issuer %s: %w", taxID, err)
	}
	return issuer, nil
}

// GetIssuer retrieves an issuer by ID.
func (s *SQLStorage) GetIssuer(ctx context.Context, id int64) (*model.Issuer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	issuer, err := scanIssuer(s.queryRow(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: issuer %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issuer: %w", err)
	}
	return issuer, nil
}

// ListIssuers returns every issuer ordered by name.
func (s *SQLStorage) ListIssuers(ctx context.Context) ([]model.Issuer, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `SELECT `+issuerColumns+` FROM issuers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issuers []model.Issuer
	for rows.Next() {
		i, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issuer: %w", err)
		}
		issuers = append(issuers, *i)
	}
	return issuers, rows.Err()
}
