package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/nuam/internal/export"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/testutil"
)

type testServer struct {
	db      *testutil.TestDB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	srv := New(db.Storage, filepath.Join(t.TempDir(), "uploads"), Options{MaxUploadBytes: 1 << 20})
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &testServer{db: db, handler: srv.Routes()}
}

func (ts *testServer) do(t *testing.T, user, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if user != "" {
		req.Header.Set(IdentityHeader, user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(t *testing.T, user, method, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return ts.do(t, user, method, target, body, "application/json")
}

// upload posts path as the multipart "file" field, plus any extra fields.
func (ts *testServer) upload(t *testing.T, user, target, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test fixture
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return ts.do(t, user, http.MethodPost, target, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func okCSV(t *testing.T) string {
	return testutil.WriteCSV(t, "ok.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1000", "0,5", "2024"},
		[]string{"2-7", "Ana", "77.777.777-7", "Pacifico SA", "10", "1", "2023"},
	)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "", http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDEchoesIncomingHeader(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "batch-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "batch-42", rec.Header().Get("X-Request-Id"))
}

func TestIdentity(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		user   string
		target string
		want   int
	}{
		{"no header", "", "/records", http.StatusUnauthorized},
		{"unknown user", "ghost", "/records", http.StatusUnauthorized},
		{"user without role", "norole", "/records", http.StatusForbidden},
		{"broker reads records", "broker", "/records", http.StatusOK},
		{"broker reads audit", "broker", "/audit", http.StatusForbidden},
		{"auditor reads audit", "auditor", "/audit", http.StatusOK},
		{"broker reads dashboard", "broker", "/dashboard", http.StatusForbidden},
		{"manager reads dashboard", "manager", "/dashboard", http.StatusOK},
		{"superuser reads dashboard", "root", "/dashboard", http.StatusOK},
		{"manager reads errors", "manager", "/errors", http.StatusForbidden},
		{"analyst reads errors", "analyst", "/errors", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.user, http.MethodGet, tt.target, nil, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUploadTabular(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "broker", "/uploads", okCSV(t), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[tabularResponse](t, rec)
	assert.Equal(t, 2, resp.OK)
	assert.Equal(t, 0, resp.Failed)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, model.FileProcessed, resp.File.Status)

	records := decode[[]model.QualifiedRecord](t, ts.do(t, "broker", http.MethodGet, "/records?tax_year=2024", nil, ""))
	require.Len(t, records, 1)
	assert.Equal(t, "500.00", records[0].QualifiedAmount.StringFixed(2))
	assert.Equal(t, "broker", records[0].BrokerLabel)
}

func TestUploadTabular_RowErrors(t *testing.T) {
	ts := newTestServer(t)
	path := testutil.WriteCSV(t, "bad.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1000", "0,5", "2024"},
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "abc", "0,5", "2024"},
	)

	rec := ts.upload(t, "analyst", "/uploads", path, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[tabularResponse](t, rec)
	assert.Equal(t, 1, resp.OK)
	assert.Equal(t, 1, resp.Failed)
	require.NotEmpty(t, resp.Errors)
	for _, e := range resp.Errors {
		assert.Equal(t, 3, e.LineNumber)
	}

	fileErrs := decode[[]model.ValidationError](t,
		ts.do(t, "analyst", http.MethodGet, fmt.Sprintf("/files/%d/errors", resp.File.ID), nil, ""))
	assert.Len(t, fileErrs, len(resp.Errors))
}

func TestUploadTabular_SchemaInvalid(t *testing.T) {
	ts := newTestServer(t)
	path := testutil.WriteCSV(t, "cols.csv", []string{"foo"}, []string{"1"})

	rec := ts.upload(t, "broker", "/uploads", path, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[tabularResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Error)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].LineNumber)
	assert.Contains(t, resp.Errors[0].Message, "missing required columns")
}

func TestUploadTabular_Rejections(t *testing.T) {
	ts := newTestServer(t)

	pdf := testutil.WritePDF(t, "cert.pdf", "hello")
	assert.Equal(t, http.StatusBadRequest, ts.upload(t, "broker", "/uploads", pdf, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.upload(t, "auditor", "/uploads", okCSV(t), nil).Code)

	rec := ts.do(t, "broker", http.MethodPost, "/uploads", strings.NewReader("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTabular_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	big := make([][]string, 0, 40000)
	for i := 0; i < 40000; i++ {
		big = append(big, []string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1000", "0,5", "2024"})
	}
	path := testutil.WriteCSV(t, "big.csv", testutil.TaxHeader, big...)

	rec := ts.upload(t, "broker", "/uploads", path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPDF(t *testing.T) {
	ts := newTestServer(t)
	path := testutil.WritePDF(t, "memo.pdf", "Quarterly memo")

	rec := ts.upload(t, "broker", "/pdfs", path, map[string]string{"name": "Memo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[pdfResponse](t, rec)
	assert.False(t, resp.Accepted)
	assert.Nil(t, resp.Record)
	assert.NotEmpty(t, resp.Missing)
	assert.Equal(t, "Memo", resp.Document.Name)

	docs := decode[[]model.PDFDocument](t, ts.do(t, "broker", http.MethodGet, "/pdfs", nil, ""))
	require.Len(t, docs, 1)
	assert.Equal(t, model.FileHasErrors, docs[0].Status)

	assert.Empty(t, decode[[]model.PDFDocument](t, ts.do(t, "analyst", http.MethodGet, "/pdfs", nil, "")))
}

func TestRecordsCRUD(t *testing.T) {
	ts := newTestServer(t)
	issuer, err := ts.db.Storage.UpsertIssuer(context.Background(), "76.123.456-K", "Andina SpA")
	require.NoError(t, err)

	body := map[string]any{
		"issuer_id":    issuer.ID,
		"tax_year":     2024,
		"gross_amount": "2000",
		"factor":       "0.25",
		"instrument":   "Shares",
	}

	assert.Equal(t, http.StatusForbidden, ts.doJSON(t, "broker", http.MethodPost, "/records", body).Code)

	rec := ts.doJSON(t, "analyst", http.MethodPost, "/records", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.QualifiedRecord](t, rec)
	assert.Equal(t, "500.00", created.QualifiedAmount.StringFixed(2))
	assert.Equal(t, model.RecordPending, created.Status)
	assert.Equal(t, model.SourceManual, created.Source)

	target := fmt.Sprintf("/records/%d", created.ID)
	got := decode[model.QualifiedRecord](t, ts.do(t, "broker", http.MethodGet, target, nil, ""))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Andina SpA", got.Issuer.Name)

	body["factor"] = "0.5"
	body["status"] = "validated"
	assert.Equal(t, http.StatusForbidden, ts.doJSON(t, "analyst", http.MethodPut, target, body).Code)

	rec = ts.doJSON(t, "admin", http.MethodPut, target, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.QualifiedRecord](t, rec)
	assert.Equal(t, "1000.00", updated.QualifiedAmount.StringFixed(2))
	assert.Equal(t, model.RecordValidated, updated.Status)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "admin", http.MethodDelete, target, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "admin", http.MethodGet, target, nil, "").Code)

	audit := decode[[]model.AuditEntry](t, ts.do(t, "auditor", http.MethodGet, "/audit", nil, ""))
	assert.Len(t, audit, 3)
}

func TestCreateRecord_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doJSON(t, "analyst", http.MethodPost, "/records", map[string]any{
		"tax_year":     1999,
		"gross_amount": "0",
		"factor":       "0.5",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, "invalid record", body.Error)
	assert.NotEmpty(t, body.Details)

	rec = ts.do(t, "analyst", http.MethodPost, "/records", strings.NewReader(`{"bogus":1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecords_BadFilters(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"tax_year=abc", "status=LOST", "from=01-01-2024", "source_file=-1"} {
		t.Run(q, func(t *testing.T) {
			rec := ts.do(t, "broker", http.MethodGet, "/records?"+q, nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "broker", http.MethodGet, "/records/abc", nil, "").Code)
}

func TestListRecords_ExcelExport(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "broker", "/uploads", okCSV(t), nil).Code)

	rec := ts.do(t, "broker", http.MethodGet, "/records?export=excel", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(export.RecordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.RecordColumns, rows[0])
}

func TestReports(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "broker", "/uploads", okCSV(t), nil).Code)

	rec := ts.do(t, "manager", http.MethodGet, "/reports/consolidated", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	years := decode[[]struct {
		TaxYear int `json:"tax_year"`
		Count   int `json:"count"`
	}](t, rec)
	require.Len(t, years, 2)
	assert.Equal(t, 2023, years[0].TaxYear)
	assert.Equal(t, 2024, years[1].TaxYear)

	rec = ts.do(t, "broker", http.MethodGet, "/reports/records?broker=broker", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, summary["count"])

	dash := decode[map[string]any](t, ts.do(t, "manager", http.MethodGet, "/dashboard", nil, ""))
	assert.EqualValues(t, 2, dash["records"])
	assert.EqualValues(t, 1, dash["tabular_files"])

	rec = ts.do(t, "manager", http.MethodGet, "/reports/management.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, http.StatusForbidden, ts.do(t, "broker", http.MethodGet, "/reports/consolidated", nil, "").Code)
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.upload(t, "broker", "/uploads", okCSV(t), nil).Code)

	list := decode[[]model.Notification](t, ts.do(t, "broker", http.MethodGet, "/notifications", nil, ""))
	require.Len(t, list, 1)
	assert.Equal(t, model.LevelInfo, list[0].Level)
	assert.False(t, list[0].Read)

	assert.Empty(t, decode[[]model.Notification](t, ts.do(t, "analyst", http.MethodGet, "/notifications", nil, "")))
	assert.Empty(t, decode[[]model.Notification](t, ts.do(t, "broker", http.MethodGet, "/notifications?level=error", nil, "")))
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "broker", http.MethodGet, "/notifications?level=loud", nil, "").Code)

	target := fmt.Sprintf("/notifications/%d/read", list[0].ID)
	assert.Equal(t, http.StatusNoContent, ts.do(t, "broker", http.MethodPost, target, nil, "").Code)

	list = decode[[]model.Notification](t, ts.do(t, "broker", http.MethodGet, "/notifications", nil, ""))
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}
