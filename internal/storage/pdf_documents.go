package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/model"
)

func optionalDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// CreatePDFDocument stores the fields extracted from an uploaded PDF.
func (s *SQLStorage) CreatePDFDocument(ctx context.Context, doc *model.PDFDocument) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if err := validateID(doc.SourceFileID, "sourceFileID"); err != nil {
		return err
	}
	if !doc.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, doc.Status)
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	var year any
	if doc.TaxYear != nil {
		year = *doc.TaxYear
	}

	id, err := s.insert(ctx, `
		INSERT INTO pdf_documents (
			source_file_id, owner_id, name, issuer_tax_id, issuer_name,
			tax_year, gross_amount, factor, status, record_id, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.SourceFileID, nullableUser(doc.OwnerID), doc.Name, doc.IssuerTaxID, doc.IssuerName,
		year, optionalDecimal(doc.GrossAmount), optionalDecimal(doc.Factor),
		string(doc.Status), nullableID(doc.RecordID), doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create pdf document: %w", err)
	}

	doc.ID = id
	return nil
}

// ListPDFDocuments returns the documents uploaded by ownerID, or all of them
// when ownerID is nil, newest first.
func (s *SQLStorage) ListPDFDocuments(ctx context.Context, ownerID *int64) ([]model.PDFDocument, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, source_file_id, COALESCE(owner_id, 0), name, issuer_tax_id, issuer_name,
		       tax_year, gross_amount, factor, status, record_id, uploaded_at
		FROM pdf_documents`
	var args []any
	if ownerID != nil {
		query += ` WHERE owner_id = ?`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY uploaded_at DESC, id DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pdf documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.PDFDocument
	for rows.Next() {
		var d model.PDFDocument
		var status string
		var year, recordID sql.NullInt64
		var gross, factor decimal.NullDecimal
		if err := rows.Scan(&d.ID, &d.SourceFileID, &d.OwnerID, &d.Name, &d.IssuerTaxID, &d.IssuerName,
			&year, &gross, &factor, &status, &recordID, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pdf document: %w", err)
		}
		d.Status = model.FileStatus(status)
		if year.Valid {
			y := int(year.Int64)
			d.TaxYear = &y
		}
		if gross.Valid {
			d.GrossAmount = &gross.Decimal
		}
		if factor.Valid {
			d.Factor = &factor.Decimal
		}
		if recordID.Valid {
			d.RecordID = &recordID.Int64
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountPDFDocuments counts every stored PDF document.
func (s *SQLStorage) CountPDFDocuments(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	n, err := s.count(ctx, `SELECT COUNT(*) FROM pdf_documents`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pdf documents: %w", err)
	}
	return n, nil
}
