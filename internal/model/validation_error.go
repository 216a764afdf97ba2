package model

import "time"

// ValidationError is one failed rule on one source line. A line may carry
// several of them. RecordID is set only when a record exists for the line,
// which never happens for rows rejected during ingestion.
type ValidationError struct {
	CreatedAt    time.Time `json:"created_at"`
	Message      string    `json:"message"`
	RecordID     *int64    `json:"record_id,omitempty"`
	ID           int64     `json:"id"`
	SourceFileID int64     `json:"source_file_id"`
	LineNumber   int       `json:"line_number"`
}
