package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/Veraticus/nuam/internal/model"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(ctx context.Context, tx *sql.Tx, d dialect) error
	Description string
	Version     int64
}

func execAll(ctx context.Context, tx *sql.Tx, d dialect, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, d.ddl(stmt)); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(ctx context.Context, tx *sql.Tx, d dialect) error {
			return execAll(ctx, tx, d,
				`CREATE TABLE roles (
					name TEXT PRIMARY KEY,
					description TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE users (
					id {{id}},
					username TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					role TEXT REFERENCES roles(name),
					is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE issuers (
					id {{id}},
					tax_id TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					contact_email TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE source_files (
					id {{id}},
					original_name TEXT NOT NULL,
					stored_path TEXT NOT NULL DEFAULT '',
					kind TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					status_message TEXT NOT NULL DEFAULT '',
					uploaded_by BIGINT REFERENCES users(id),
					issuer_id BIGINT REFERENCES issuers(id) ON DELETE SET NULL,
					uploaded_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE qualified_records (
					id {{id}},
					issuer_id BIGINT NOT NULL REFERENCES issuers(id),
					broker_label TEXT NOT NULL DEFAULT '',
					instrument TEXT NOT NULL DEFAULT '',
					tax_year INTEGER NOT NULL,
					gross_amount {{decimal}} NOT NULL,
					factor {{decimal}} NOT NULL,
					qualified_amount {{decimal}} NOT NULL,
					source TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					source_file_id BIGINT REFERENCES source_files(id) ON DELETE SET NULL,
					responsible_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE validation_errors (
					id {{id}},
					source_file_id BIGINT NOT NULL REFERENCES source_files(id) ON DELETE CASCADE,
					record_id BIGINT REFERENCES qualified_records(id) ON DELETE SET NULL,
					line_number INTEGER NOT NULL,
					message TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE pdf_documents (
					id {{id}},
					source_file_id BIGINT NOT NULL REFERENCES source_files(id) ON DELETE CASCADE,
					owner_id BIGINT REFERENCES users(id),
					name TEXT NOT NULL DEFAULT '',
					issuer_tax_id TEXT NOT NULL DEFAULT '',
					issuer_name TEXT NOT NULL DEFAULT '',
					tax_year INTEGER,
					gross_amount {{decimal}},
					factor {{decimal}},
					status TEXT NOT NULL,
					record_id BIGINT REFERENCES qualified_records(id) ON DELETE SET NULL,
					uploaded_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE audit_entries (
					id {{id}},
					actor_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					actor_name TEXT NOT NULL DEFAULT '',
					action TEXT NOT NULL,
					entity_kind TEXT NOT NULL,
					entity_id BIGINT,
					detail TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE notifications (
					id {{id}},
					user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
					message TEXT NOT NULL,
					level TEXT NOT NULL,
					is_read BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Seed roles",
		Up: func(ctx context.Context, tx *sql.Tx, d dialect) error {
			for _, role := range model.DefaultRoles {
				_, err := tx.ExecContext(ctx,
					d.rebind(`INSERT INTO roles (name, description) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`),
					string(role.Name), role.Description)
				if err != nil {
					return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Listing indexes",
		Up: func(ctx context.Context, tx *sql.Tx, d dialect) error {
			return execAll(ctx, tx, d,
				`CREATE INDEX idx_records_tax_year ON qualified_records(tax_year)`,
				`CREATE INDEX idx_records_source_file ON qualified_records(source_file_id)`,
				`CREATE INDEX idx_records_created_at ON qualified_records(created_at)`,
				`CREATE INDEX idx_validation_errors_file ON validation_errors(source_file_id, line_number)`,
				`CREATE INDEX idx_audit_created_at ON audit_entries(created_at)`,
				`CREATE INDEX idx_notifications_user ON notifications(user_id, created_at)`,
			)
		},
	},
}

// provider builds a goose provider over the Go migrations above.
func (s *SQLStorage) provider() (*goose.Provider, error) {
	gms := make([]*goose.Migration, 0, len(migrations))
	for _, m := range migrations {
		up := m.Up
		gms = append(gms, goose.NewGoMigration(m.Version, &goose.GoFunc{
			RunTx: func(ctx context.Context, tx *sql.Tx) error {
				return up(ctx, tx, s.dialect)
			},
		}, nil))
	}

	p, err := goose.NewProvider(s.dialect.goose, s.db, nil, goose.WithGoMigrations(gms...))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies all pending database migrations.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	p, err := s.provider()
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied migration",
			"version", r.Source.Version,
			"description", describe(r.Source.Version),
			"duration", r.Duration)
	}

	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if version != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, version)
	}

	return nil
}

// MigrationState describes one known migration.
type MigrationState struct {
	Description string
	Version     int64
	Applied     bool
}

// MigrationStatus reports which migrations have been applied.
func (s *SQLStorage) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, MigrationState{
			Version:     st.Source.Version,
			Description: describe(st.Source.Version),
			Applied:     st.State == goose.StateApplied,
		})
	}
	return out, nil
}

func describe(version int64) string {
	for _, m := range migrations {
		if m.Version == version {
			return m.Description
		}
	}
	return ""
}
