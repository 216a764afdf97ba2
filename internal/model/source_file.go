package model

import (
	"path/filepath"
	"strings"
	"time"
)

// FileKind identifies the format of an uploaded file.
type FileKind string

// File kinds accepted for upload.
const (
	KindCSV  FileKind = "CSV"
	KindXLSX FileKind = "XLSX"
	KindXLS  FileKind = "XLS"
	KindPDF  FileKind = "PDF"
)

// FileStatus tracks where a source file is in its ingestion lifecycle.
type FileStatus string

// Source file status values.
const (
	FilePending   FileStatus = "PENDING"
	FileProcessed FileStatus = "PROCESSED"
	FileHasErrors FileStatus = "HAS_ERRORS"
)

// IsValid reports whether the status is one of the known values.
func (s FileStatus) IsValid() bool {
	switch s {
	case FilePending, FileProcessed, FileHasErrors:
		return true
	}
	return false
}

// KindFromExtension maps a file name's extension to its kind. The second
// return value is false for anything that is not csv, xlsx, xls or pdf.
func KindFromExtension(filename string) (FileKind, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return KindCSV, true
	case ".xlsx":
		return KindXLSX, true
	case ".xls":
		return KindXLS, true
	case ".pdf":
		return KindPDF, true
	}
	return "", false
}

// IsTabular reports whether the kind goes through the tabular pipeline.
func (k FileKind) IsTabular() bool {
	return k == KindCSV || k == KindXLSX || k == KindXLS
}

// Extension returns the canonical lower-case extension for the kind.
func (k FileKind) Extension() string {
	return "." + strings.ToLower(string(k))
}

// SourceFile is one upload. It owns the validation errors of its latest
// ingestion attempt and is the provenance of the records it produced.
type SourceFile struct {
	UploadedAt    time.Time  `json:"uploaded_at"`
	OriginalName  string     `json:"original_name"`
	StoredPath    string     `json:"-"`
	Kind          FileKind   `json:"kind"`
	Status        FileStatus `json:"status"`
	StatusMessage string     `json:"status_message"`
	ID            int64      `json:"id"`
	UploadedBy    int64      `json:"uploaded_by"`
	IssuerID      *int64     `json:"issuer_id,omitempty"`
}
