package ingest

import (
	"context"
	"fmt"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/numeric"
	"github.com/Veraticus/nuam/internal/pdftext"
)

// PDFResult describes the outcome of one certificate ingestion.
type PDFResult struct {
	Fields   model.RawRecord
	Document *model.PDFDocument
	// Record is nil when the document was rejected.
	Record  *model.QualifiedRecord
	Missing []string
}

// Accepted reports whether the document produced a record.
func (r PDFResult) Accepted() bool {
	return r.Record != nil
}

// IngestPDF extracts the labeled fields of a PDF certificate and stores them.
// A file whose text cannot be read is handled like a document with no fields.
func (o *Orchestrator) IngestPDF(ctx context.Context, file *model.SourceFile, actor *model.User, name string) (PDFResult, error) {
	if err := checkArgs(file, actor); err != nil {
		return PDFResult{}, err
	}

	text, err := pdftext.ExtractText(file.StoredPath)
	if err != nil {
		o.logger.Warn("pdf text unreadable", "file_id", file.ID, "error", err)
		text = ""
	}
	return o.IngestPDFText(ctx, file, actor, name, text)
}

// IngestPDFText stores a certificate from already extracted text.
//
// The document is always kept with whatever fields were found. When a field
// is missing it is marked HAS_ERRORS and one validation error at line 1
// lists the missing fields. Otherwise the issuer is upserted, a pending
// record with source PDF is created and linked to the document.
func (o *Orchestrator) IngestPDFText(ctx context.Context, file *model.SourceFile, actor *model.User,
	name, text string,
) (PDFResult, error) {
	if err := checkArgs(file, actor); err != nil {
		return PDFResult{}, err
	}
	if name == "" {
		name = file.OriginalName
	}

	fields := pdftext.ExtractFields(text)
	res := PDFResult{
		Fields:   fields,
		Missing:  pdftext.MissingFields(fields),
		Document: documentFrom(fields, file, actor, name),
	}

	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return PDFResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ClearValidationErrors(ctx, file.ID); err != nil {
		return PDFResult{}, err
	}

	if len(res.Missing) > 0 {
		if err := tx.SaveValidationErrors(ctx, []model.ValidationError{{
			SourceFileID: file.ID,
			LineNumber:   SchemaLine,
			Message:      pdftext.RejectionMessage(res.Missing),
		}}); err != nil {
			return PDFResult{}, err
		}
		res.Document.Status = model.FileHasErrors
	} else {
		record, err := createRecord(ctx, tx, fields, model.SourcePDF, file, actor)
		if err != nil {
			return PDFResult{}, err
		}
		res.Record = record
		res.Document.Status = model.FileProcessed
		res.Document.RecordID = &record.ID
	}

	if err := tx.CreatePDFDocument(ctx, res.Document); err != nil {
		return PDFResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PDFResult{}, fmt.Errorf("failed to commit pdf ingestion: %w", err)
	}

	o.logger.Info("pdf ingested",
		"file_id", file.ID,
		"document_id", res.Document.ID,
		"accepted", res.Accepted(),
		"missing", res.Missing)
	return res, nil
}

// documentFrom copies every field that parses into a new document.
func documentFrom(fields model.RawRecord, file *model.SourceFile, actor *model.User, name string) *model.PDFDocument {
	doc := &model.PDFDocument{
		Name:         name,
		SourceFileID: file.ID,
		OwnerID:      actor.ID,
		Status:       model.FilePending,
		GrossAmount:  numeric.Optional(fields[model.ColGrossAmount]),
		Factor:       numeric.Optional(fields[model.ColFactor]),
	}
	doc.IssuerTaxID, _ = fields.Text(model.ColIssuerTaxID)
	doc.IssuerName, _ = fields.Text(model.ColIssuerName)
	if year, err := numeric.ParseInt(fields[model.ColTaxYear]); err == nil {
		doc.TaxYear = &year
	}
	return doc
}
