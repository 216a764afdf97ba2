// Package intake accepts uploaded files, stores them and runs them through
// ingestion, reporting the outcome on the file, the audit log and the
// uploader's notifications.
package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/ingest"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/pdftext"
	"github.com/Veraticus/nuam/internal/service"
)

// TabularOutcome is the result of a spreadsheet upload.
type TabularOutcome struct {
	File   *model.SourceFile
	Result ingest.Result
}

// PDFOutcome is the result of a certificate upload.
type PDFOutcome struct {
	File *model.SourceFile
	ingest.PDFResult
}

// Service handles uploads.
type Service struct {
	store    service.Storage
	orch     *ingest.Orchestrator
	audit    activity.Recorder
	notifier activity.Notifier
	logger   *slog.Logger
	dir      string
}

// NewService creates an intake service storing uploads under dir.
func NewService(store service.Storage, audit activity.Recorder, notifier activity.Notifier, dir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		orch:     ingest.NewOrchestrator(store, logger),
		audit:    audit,
		notifier: notifier,
		logger:   logger,
		dir:      dir,
	}
}

// SummaryMessage renders the status message of an ingested tabular file.
func SummaryMessage(res ingest.Result) string {
	return fmt.Sprintf("OK records: %d, with errors: %d", res.OK, res.Failed)
}

// UploadTabular stores a CSV or Excel upload and ingests it.
//
// Files with any other extension fail with common.ErrUnsupportedFormat before
// anything is written. Once the file is stored its status always ends as
// PROCESSED or HAS_ERRORS, even when ingestion fails unexpectedly; in that
// case the error is also returned.
func (s *Service) UploadTabular(ctx context.Context, actor *model.User, filename string, r io.Reader) (*TabularOutcome, error) {
	if actor == nil {
		return nil, common.ErrUnauthenticated
	}
	kind, ok := model.KindFromExtension(filename)
	if !ok || !kind.IsTabular() {
		return nil, common.NewUserError(
			"Format not allowed. Only CSV or Excel files are accepted; upload PDFs as certificates.",
			fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(filename)))
	}

	file, err := s.save(ctx, actor, filename, kind, r)
	if err != nil {
		return nil, err
	}
	out := &TabularOutcome{File: file}

	if err := s.audit.Record(ctx, actor, activity.ActionBulkUpload, activity.EntitySourceFile, file.ID, file.OriginalName); err != nil {
		common.LogError(err, "audit failed", common.Fields{"file_id": file.ID})
	}

	res, err := s.orch.IngestTabular(ctx, file, actor)
	if err != nil {
		s.fail(ctx, actor, file, err)
		return out, fmt.Errorf("failed to process file #%d: %w", file.ID, err)
	}
	out.Result = res

	status := model.FileProcessed
	level := model.LevelInfo
	if !res.Valid || res.Failed > 0 {
		status = model.FileHasErrors
		level = model.LevelError
	}
	s.finish(ctx, file, status, SummaryMessage(res))
	s.notify(ctx, actor, level, fmt.Sprintf("File #%d processed. %s.", file.ID, SummaryMessage(res)))

	return out, nil
}

// UploadPDF stores a certificate upload and extracts its record. name is the
// human label of the document and defaults to the file name.
func (s *Service) UploadPDF(ctx context.Context, actor *model.User, name, filename string, r io.Reader) (*PDFOutcome, error) {
	if actor == nil {
		return nil, common.ErrUnauthenticated
	}
	kind, ok := model.KindFromExtension(filename)
	if !ok || kind != model.KindPDF {
		return nil, common.NewUserError(
			"Only PDF files are accepted.",
			fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, filepath.Ext(filename)))
	}

	file, err := s.save(ctx, actor, filename, kind, r)
	if err != nil {
		return nil, err
	}
	out := &PDFOutcome{File: file}

	res, err := s.orch.IngestPDF(ctx, file, actor, strings.TrimSpace(name))
	if err != nil {
		s.fail(ctx, actor, file, err)
		return out, fmt.Errorf("failed to process PDF #%d: %w", file.ID, err)
	}
	out.PDFResult = res

	if !res.Accepted() {
		s.finish(ctx, file, model.FileHasErrors, pdfRejection(res))
		s.notify(ctx, actor, model.LevelWarning,
			fmt.Sprintf("PDF #%d rejected: %s.", res.Document.ID, pdfRejection(res)))
		return out, nil
	}

	rec := res.Record
	detail := fmt.Sprintf("PDF #%d | RUT=%s, Year=%d, Gross=%s, Factor=%s",
		res.Document.ID, rec.Issuer.TaxID, rec.TaxYear, rec.GrossAmount.String(), rec.Factor.String())
	if err := s.audit.Record(ctx, actor, activity.ActionPDFRecord, activity.EntityRecord, rec.ID, detail); err != nil {
		common.LogError(err, "audit failed", common.Fields{"record_id": rec.ID})
	}
	s.finish(ctx, file, model.FileProcessed, fmt.Sprintf("record #%d created", rec.ID))
	s.notify(ctx, actor, model.LevelInfo,
		fmt.Sprintf("PDF uploaded and record #%d created for %s (%s), year %d.",
			rec.ID, rec.Issuer.Name, rec.Issuer.TaxID, rec.TaxYear))

	return out, nil
}

// save writes the upload under a fresh name and registers it as pending.
func (s *Service) save(ctx context.Context, actor *model.User, filename string, kind model.FileKind, r io.Reader) (*model.SourceFile, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+kind.Extension())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // generated name
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	common.LogDebug("upload written", common.Fields{"path": path, "bytes": n})

	file := &model.SourceFile{
		OriginalName: filepath.Base(filename),
		StoredPath:   path,
		Kind:         kind,
		Status:       model.FilePending,
		UploadedBy:   actor.ID,
	}
	if err := s.store.CreateSourceFile(ctx, file); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.logger.Info("upload stored", "file_id", file.ID, "kind", kind, "name", file.OriginalName, "user", actor.Username)
	return file, nil
}

func (s *Service) fail(ctx context.Context, actor *model.User, file *model.SourceFile, cause error) {
	common.LogError(cause, "ingestion failed", common.Fields{"file_id": file.ID, "kind": string(file.Kind)})
	s.finish(ctx, file, model.FileHasErrors, cause.Error())
	s.notify(ctx, actor, model.LevelError, fmt.Sprintf("File #%d could not be processed: %v", file.ID, cause))
}

func (s *Service) finish(ctx context.Context, file *model.SourceFile, status model.FileStatus, msg string) {
	if err := s.store.UpdateSourceFileStatus(ctx, file.ID, status, msg); err != nil {
		common.LogError(err, "failed to update file status", common.Fields{"file_id": file.ID})
		return
	}
	file.Status = status
	file.StatusMessage = msg
}

func (s *Service) notify(ctx context.Context, actor *model.User, level model.NotificationLevel, msg string) {
	if err := s.notifier.Notify(ctx, actor, level, msg); err != nil {
		common.LogError(err, "notification failed", common.Fields{"user": actor.Username})
	}
}

func pdfRejection(res ingest.PDFResult) string {
	return pdftext.RejectionMessage(res.Missing)
}
