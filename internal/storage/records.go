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
	"github.com/Veraticus/nuam/internal/service"
)

const recordSelect = `
	SELECT r.id, r.broker_label, r.instrument, r.tax_year,
	       r.gross_amount, r.factor, r.qualified_amount,
	       r.source, r.status, r.source_file_id, r.responsible_id, r.created_at,
	       i.id, i.tax_id, i.name, i.contact_email, i.created_at
	FROM qualified_records r
	JOIN issuers i ON i.id = r.issuer_id`

func scanRecord(row interface{ Scan(...any) error }) (*model.QualifiedRecord, error) {
	var r model.QualifiedRecord
	var source, status string
	var sourceFileID, responsibleID sql.NullInt64

	err := row.Scan(
		&r.ID, &r.BrokerLabel, &r.Instrument, &r.TaxYear,
		&r.GrossAmount, &r.Factor, &r.QualifiedAmount,
		&source, &status, &sourceFileID, &responsibleID, &r.CreatedAt,
		&r.Issuer.ID, &r.Issuer.TaxID, &r.Issuer.Name, &r.Issuer.ContactEmail, &r.Issuer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Source = model.RecordSource(source)
	r.Status = model.RecordStatus(status)
	if sourceFileID.Valid {
		r.SourceFileID = &sourceFileID.Int64
	}
	if responsibleID.Valid {
		r.ResponsibleID = &responsibleID.Int64
	}
	return &r, nil
}

// CreateRecord inserts a qualified record and sets its ID. The qualified
// amount is always recomputed from gross amount and factor.
func (s *SQLStorage) CreateRecord(ctx context.Context, record *model.QualifiedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record != nil && record.Status == "" {
		record.Status = model.RecordPending
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	record.Recompute()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx, `
		INSERT INTO qualified_records (
			issuer_id, broker_label, instrument, tax_year,
			gross_amount, factor, qualified_amount,
			source, status, source_file_id, responsible_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Issuer.ID, record.BrokerLabel, record.Instrument, record.TaxYear,
		record.GrossAmount.String(), record.Factor.String(), record.QualifiedAmount.String(),
		string(record.Source), string(record.Status),
		nullableID(record.SourceFileID), nullableID(record.ResponsibleID), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	record.ID = id
	return nil
}

// GetRecord retrieves a qualified record with its issuer.
func (s *SQLStorage) GetRecord(ctx context.Context, id int64) (*model.QualifiedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	r, err := scanRecord(s.queryRow(ctx, recordSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// UpdateRecord rewrites the editable fields of a record and recomputes its
// qualified amount.
func (s *SQLStorage) UpdateRecord(ctx context.Context, record *model.QualifiedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	if err := validateID(record.ID, "record.ID"); err != nil {
		return err
	}

	record.Recompute()

	res, err := s.exec(ctx, `
		UPDATE qualified_records SET
			issuer_id = ?, broker_label = ?, instrument = ?, tax_year = ?,
			gross_amount = ?, factor = ?, qualified_amount = ?,
			status = ?, responsible_id = ?
		WHERE id = ?`,
		record.Issuer.ID, record.BrokerLabel, record.Instrument, record.TaxYear,
		record.GrossAmount.String(), record.Factor.String(), record.QualifiedAmount.String(),
		string(record.Status), nullableID(record.ResponsibleID), record.ID)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %d", common.ErrNotFound, record.ID)
	}
	return nil
}

// DeleteRecord removes a record. Validation errors and PDF documents that
// pointed at it keep existing with the link cleared.
func (s *SQLStorage) DeleteRecord(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.exec(ctx, `DELETE FROM qualified_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %d", common.ErrNotFound, id)
	}
	return nil
}

// ListRecords returns the records matching filter, newest first.
func (s *SQLStorage) ListRecords(ctx context.Context, filter service.RecordFilter) ([]model.QualifiedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: %v to %v", ErrInvalidDateRange, *filter.From, *filter.To)
	}

	var where []string
	var args []any

	if filter.TaxYear != nil {
		where = append(where, "r.tax_year = ?")
		args = append(args, *filter.TaxYear)
	}
	if b := strings.TrimSpace(filter.Broker); b != "" {
		where = append(where, "LOWER(r.broker_label) LIKE ?")
		args = append(args, "%"+strings.ToLower(b)+"%")
	}
	if n := strings.TrimSpace(filter.IssuerName); n != "" {
		where = append(where, "LOWER(i.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(n)+"%")
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.SourceFileID != nil {
		where = append(where, "r.source_file_id = ?")
		args = append(args, *filter.SourceFileID)
	}
	if filter.From != nil {
		where = append(where, "r.created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "r.created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := recordSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.QualifiedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// CountRecords counts every qualified record.
func (s *SQLStorage) CountRecords(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	n, err := s.count(ctx, `SELECT COUNT(*) FROM qualified_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
