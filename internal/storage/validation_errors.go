package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/nuam/internal/model"
)

// ClearValidationErrors removes every error recorded for a source file.
func (s *SQLStorage) ClearValidationErrors(ctx context.Context, sourceFileID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(sourceFileID, "sourceFileID"); err != nil {
		return err
	}

	if _, err := s.exec(ctx, `DELETE FROM validation_errors WHERE source_file_id = ?`, sourceFileID); err != nil {
		return fmt.Errorf("failed to clear validation errors: %w", err)
	}
	return nil
}

// SaveValidationErrors inserts errs and sets their IDs. An empty slice is a
// no-op.
func (s *SQLStorage) SaveValidationErrors(ctx context.Context, errs []model.ValidationError) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range errs {
		ve := &errs[i]
		if err := validateID(ve.SourceFileID, "sourceFileID"); err != nil {
			return fmt.Errorf("validation error at index %d: %w", i, err)
		}
		if ve.CreatedAt.IsZero() {
			ve.CreatedAt = now
		}

		id, err := s.insert(ctx, `
			INSERT INTO validation_errors (source_file_id, record_id, line_number, message, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			ve.SourceFileID, nullableID(ve.RecordID), ve.LineNumber, ve.Message, ve.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save validation error for line %d: %w", ve.LineNumber, err)
		}
		ve.ID = id
	}
	return nil
}

// ListValidationErrors returns the errors of one source file, or of all
// files when sourceFileID is nil, ordered by file and line.
func (s *SQLStorage) ListValidationErrors(ctx context.Context, sourceFileID *int64) ([]model.ValidationError, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, source_file_id, record_id, line_number, message, created_at FROM validation_errors`
	var args []any
	if sourceFileID != nil {
		query += ` WHERE source_file_id = ?`
		args = append(args, *sourceFileID)
	}
	query += ` ORDER BY source_file_id, line_number, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ValidationError
	for rows.Next() {
		var ve model.ValidationError
		var recordID sql.NullInt64
		if err := rows.Scan(&ve.ID, &ve.SourceFileID, &recordID, &ve.LineNumber, &ve.Message, &ve.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan validation error: %w", err)
		}
		if recordID.Valid {
			ve.RecordID = &recordID.Int64
		}
		out = append(out, ve)
	}
	return out, rows.Err()
}

// CountValidationErrors counts every stored validation error.
func (s *SQLStorage) CountValidationErrors(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	n, err := s.count(ctx, `SELECT COUNT(*) FROM validation_errors`)
	if err != nil {
		return 0, fmt.Errorf("failed to count validation errors: %w", err)
	}
	return n, nil
}
