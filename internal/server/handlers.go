package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/export"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/records"
	"github.com/Veraticus/nuam/internal/service"
)

// Content types of the downloadable reports.
const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type tabularResponse struct {
	File   *model.SourceFile       `json:"file"`
	Error  string                  `json:"error,omitempty"`
	Errors []model.ValidationError `json:"errors"`
	OK     int                     `json:"ok"`
	Failed int                     `json:"failed"`
	Valid  bool                    `json:"valid"`
}

type pdfResponse struct {
	File     *model.SourceFile      `json:"file"`
	Document *model.PDFDocument     `json:"document"`
	Record   *model.QualifiedRecord `json:"record,omitempty"`
	Missing  []string               `json:"missing,omitempty"`
	Accepted bool                   `json:"accepted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadedFile opens the multipart "file" part, capped at the upload limit.
func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, common.NewUserError(
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, common.NewUserError("a file field is required", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	return f, header, nil
}

func (s *Server) handleUploadTabular(w http.ResponseWriter, r *http.Request) {
	f, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	out, err := s.intake.UploadTabular(r.Context(), UserFromContext(r.Context()), header.Filename, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	errs, err := s.store.ListValidationErrors(r.Context(), &out.File.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := tabularResponse{
		File:   out.File,
		OK:     out.Result.OK,
		Failed: out.Result.Failed,
		Valid:  out.Result.Valid,
		Errors: errs,
	}
	if !out.Result.Valid {
		resp.Error = common.ErrSchemaInvalid.Error()
		writeJSON(w, statusFor(common.ErrSchemaInvalid), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	f, header, err := s.uploadedFile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	out, err := s.intake.UploadPDF(r.Context(), UserFromContext(r.Context()), r.FormValue("name"), header.Filename, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, pdfResponse{
		File:     out.File,
		Document: out.Document,
		Record:   out.Record,
		Missing:  out.Missing,
		Accepted: out.Accepted(),
	})
}

func (s *Server) handleListPDFs(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	docs, err := s.store.ListPDFDocuments(r.Context(), &user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListSourceFiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(files))
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := s.store.GetSourceFile(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleFileErrors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.store.GetSourceFile(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeValidationErrors(w, r, &id)
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	s.writeValidationErrors(w, r, nil)
}

func (s *Server) writeValidationErrors(w http.ResponseWriter, r *http.Request, fileID *int64) {
	errs, err := s.store.ListValidationErrors(r.Context(), fileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(errs))
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.records.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("export"), "excel") {
		w.Header().Set("Content-Type", contentTypeXLSX)
		w.Header().Set("Content-Disposition", `attachment; filename="records.xlsx"`)
		if err := export.Excel(w, list); err != nil {
			s.logger.Error("excel export failed", "error", err, "request_id", RequestID(r.Context()))
		}
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func decodeInput(r *http.Request) (records.Input, error) {
	var in records.Input
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, common.NewUserError("malformed record body", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	in.Status = model.RecordStatus(strings.ToUpper(string(in.Status)))
	return in, nil
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.records.Create(r.Context(), UserFromContext(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := decodeInput(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.records.Update(r.Context(), UserFromContext(r.Context()), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.records.Delete(r.Context(), UserFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.activity.Entries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	years, err := s.reports.Consolidated(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(years))
}

func (s *Server) handleRecordsReport(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		s.writeError(w, r, fmt.Errorf("%w: status %q", common.ErrInvalidInput, filter.Status))
		return
	}
	summary, err := s.reports.Records(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d.RecentActivity = nonNil(d.RecentActivity)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleManagementPDF(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	years, err := s.reports.Consolidated(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypePDF)
	w.Header().Set("Content-Disposition", `attachment; filename="management-report.pdf"`)
	rep := export.ManagementReport{GeneratedAt: s.now(), Dashboard: d, Years: years}
	if err := export.ManagementPDF(w, rep); err != nil {
		s.logger.Error("management report failed", "error", err, "request_id", RequestID(r.Context()))
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter := service.NotificationFilter{
		From:  from,
		To:    to,
		Level: model.NotificationLevel(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("level")))),
	}

	list, err := s.activity.Notifications(r.Context(), UserFromContext(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.activity.MarkRead(r.Context(), UserFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty listings encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
