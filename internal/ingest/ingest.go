// Package ingest drives uploaded files through extraction, validation and
// record creation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/numeric"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/tabular"
	"github.com/Veraticus/nuam/internal/validation"
)

// SchemaLine is the line every file-level rejection is reported on.
const SchemaLine = 1

// Result summarizes one tabular ingestion attempt.
type Result struct {
	OK     int
	Failed int
	// Valid is false when the file was rejected before any row was read.
	Valid bool
}

// Orchestrator runs ingestions against a storage backend.
type Orchestrator struct {
	store  service.Storage
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger uses slog.Default.
func NewOrchestrator(store service.Storage, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, logger: logger}
}

// SchemaMessage renders the rejection of a file lacking required columns.
func SchemaMessage(missing, found []string) string {
	return fmt.Sprintf("missing required columns: %s; found: %s",
		strings.Join(missing, ", "), strings.Join(found, ", "))
}

// IngestTabular reads a CSV or Excel source file and turns every valid row
// into a pending qualified record.
//
// Unsupported or unreadable files fail before anything is written. A file
// lacking required columns gets exactly one validation error at line 1 and
// yields Result{Valid: false}. Otherwise previous validation errors of the
// file are replaced by the errors of this attempt, rows are numbered from 2,
// and the error, issuer and record writes commit together. Any storage
// failure rolls the whole attempt back and is returned.
func (o *Orchestrator) IngestTabular(ctx context.Context, file *model.SourceFile, actor *model.User) (Result, error) {
	if err := checkArgs(file, actor); err != nil {
		return Result{}, err
	}

	table, err := tabular.Extract(file.StoredPath, file.Kind.Extension())
	if err != nil {
		return Result{}, err
	}

	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ClearValidationErrors(ctx, file.ID); err != nil {
		return Result{}, err
	}

	if missing := table.MissingColumns(model.RequiredColumns); len(missing) > 0 {
		msg := SchemaMessage(missing, table.Columns)
		if err := tx.SaveValidationErrors(ctx, []model.ValidationError{{
			SourceFileID: file.ID,
			LineNumber:   SchemaLine,
			Message:      msg,
		}}); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(); err != nil {
			return Result{}, fmt.Errorf("failed to commit schema rejection: %w", err)
		}

		o.logger.Warn("file rejected",
			"file_id", file.ID,
			"kind", file.Kind,
			"missing", missing)
		return Result{Valid: false}, nil
	}

	res := Result{Valid: true}
	for i, row := range table.Rows {
		line := i + 2

		if msgs := validation.Row(row); len(msgs) > 0 {
			res.Failed++
			o.logger.Debug("row rejected", "file_id", file.ID, "line", line, "errors", msgs)

			errs := make([]model.ValidationError, len(msgs))
			for j, msg := range msgs {
				errs[j] = model.ValidationError{SourceFileID: file.ID, LineNumber: line, Message: msg}
			}
			if err := tx.SaveValidationErrors(ctx, errs); err != nil {
				return Result{}, err
			}
			continue
		}

		if _, err := createRecord(ctx, tx, row, model.SourceSpreadsheet, file, actor); err != nil {
			return Result{}, fmt.Errorf("line %d: %w", line, err)
		}
		res.OK++
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("failed to commit ingestion: %w", err)
	}

	o.logger.Info("file ingested",
		"file_id", file.ID,
		"kind", file.Kind,
		"ok", res.OK,
		"failed", res.Failed)
	return res, nil
}

// createRecord upserts the issuer of a validated row or document and stores
// its qualified record.
func createRecord(ctx context.Context, tx service.Transaction, fields model.RawRecord,
	source model.RecordSource, file *model.SourceFile, actor *model.User,
) (*model.QualifiedRecord, error) {
	gross, err := numeric.Parse(fields[model.ColGrossAmount])
	if err != nil {
		return nil, err
	}
	factor, err := numeric.Parse(fields[model.ColFactor])
	if err != nil {
		return nil, err
	}
	year, err := numeric.ParseInt(fields[model.ColTaxYear])
	if err != nil {
		return nil, err
	}

	taxID, _ := fields.Text(model.ColIssuerTaxID)
	name, _ := fields.Text(model.ColIssuerName)
	issuer, err := tx.UpsertIssuer(ctx, taxID, name)
	if err != nil {
		return nil, err
	}

	record := &model.QualifiedRecord{
		Issuer:        *issuer,
		BrokerLabel:   actor.Username,
		TaxYear:       year,
		GrossAmount:   gross,
		Factor:        factor,
		Source:        source,
		Status:        model.RecordPending,
		SourceFileID:  &file.ID,
		ResponsibleID: &actor.ID,
	}
	if err := tx.CreateRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func checkArgs(file *model.SourceFile, actor *model.User) error {
	if file == nil || file.ID <= 0 {
		return fmt.Errorf("%w: source file must be stored before ingestion", common.ErrInvalidInput)
	}
	if actor == nil || actor.ID <= 0 {
		return common.ErrUnauthenticated
	}
	return nil
}
