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

const sourceFileColumns = `id, original_name, stored_path, kind, status, status_message,
	COALESCE(uploaded_by, 0), issuer_id, uploaded_at`

func scanSourceFile(row interface{ Scan(...any) error }) (*model.SourceFile, error) {
	var f model.SourceFile
	var kind, status string
	var issuerID sql.NullInt64
	if err := row.Scan(&f.ID, &f.OriginalName, &f.StoredPath, &kind, &status,
		&f.StatusMessage, &f.UploadedBy, &issuerID, &f.UploadedAt); err != nil {
		return nil, err
	}
	f.Kind = model.FileKind(kind)
	f.Status = model.FileStatus(status)
	if issuerID.Valid {
		f.IssuerID = &issuerID.Int64
	}
	return &f, nil
}

func nullableID(id *int64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func nullableUser(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// CreateSourceFile inserts an upload record. A blank status becomes PENDING
// and a zero upload time becomes now.
func (s *SQLStorage) CreateSourceFile(ctx context.Context, file *model.SourceFile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSourceFile(file); err != nil {
		return err
	}

	if file.Status == "" {
		file.Status = model.FilePending
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx, `
		INSERT INTO source_files (original_name, stored_path, kind, status, status_message, uploaded_by, issuer_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		file.OriginalName, file.StoredPath, string(file.Kind), string(file.Status),
		file.StatusMessage, nullableUser(file.UploadedBy), nullableID(file.IssuerID), file.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create source file: %w", err)
	}

	file.ID = id
	return nil
}

// GetSourceFile retrieves an upload by ID.
func (s *SQLStorage) GetSourceFile(ctx context.Context, id int64) (*model.SourceFile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	f, err := scanSourceFile(s.queryRow(ctx, `SELECT `+sourceFileColumns+` FROM source_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source file %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source file: %w", err)
	}
	return f, nil
}

// UpdateSourceFileStatus records the outcome of an ingestion attempt.
func (s *SQLStorage) UpdateSourceFileStatus(ctx context.Context, id int64, status model.FileStatus, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := s.exec(ctx, `UPDATE source_files SET status = ?, status_message = ? WHERE id = ?`,
		string(status), message, id)
	if err != nil {
		return fmt.Errorf("failed to update source file status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: source file %d", common.ErrNotFound, id)
	}
	return nil
}

// ListSourceFiles returns every upload, newest first.
func (s *SQLStorage) ListSourceFiles(ctx context.Context) ([]model.SourceFile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `SELECT `+sourceFileColumns+` FROM source_files ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list source files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []model.SourceFile
	for rows.Next() {
		f, err := scanSourceFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// CountSourceFiles counts uploads, optionally restricted to some kinds.
func (s *SQLStorage) CountSourceFiles(ctx context.Context, kinds ...model.FileKind) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM source_files`
	args := make([]any, 0, len(kinds))
	if len(kinds) > 0 {
		marks := make([]string, len(kinds))
		for i, k := range kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		query += ` WHERE kind IN (` + strings.Join(marks, ", ") + `)`
	}

	n, err := s.count(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count source files: %w", err)
	}
	return n, nil
}
