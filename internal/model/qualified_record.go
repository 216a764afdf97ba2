package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordSource tells where a qualified record came from.
type RecordSource string

// Record sources.
const (
	SourceSpreadsheet RecordSource = "SPREADSHEET"
	SourcePDF         RecordSource = "PDF"
	SourceManual      RecordSource = "MANUAL"
)

// RecordStatus is the review state of a qualified record.
type RecordStatus string

// Record statuses.
const (
	RecordPending   RecordStatus = "PENDING"
	RecordValidated RecordStatus = "VALIDATED"
	RecordPublished RecordStatus = "PUBLISHED"
)

// IsValid reports whether the status is one of the known values.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordPending, RecordValidated, RecordPublished:
		return true
	}
	return false
}

// Tax year bounds, inclusive.
const (
	MinTaxYear = 2000
	MaxTaxYear = 2100
)

// QualifiedAmount is gross * factor rounded to two decimal places.
func QualifiedAmount(gross, factor decimal.Decimal) decimal.Decimal {
	return gross.Mul(factor).Round(2)
}

// QualifiedRecord is a validated tax qualification derived from one input row
// or one PDF document.
type QualifiedRecord struct {
	CreatedAt       time.Time       `json:"created_at"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	Factor          decimal.Decimal `json:"factor"`
	QualifiedAmount decimal.Decimal `json:"qualified_amount"`
	BrokerLabel     string          `json:"broker_label"`
	Instrument      string          `json:"instrument"`
	Source          RecordSource    `json:"source"`
	Status          RecordStatus    `json:"status"`
	Issuer          Issuer          `json:"issuer"`
	SourceFileID    *int64          `json:"source_file_id,omitempty"`
	ResponsibleID   *int64          `json:"responsible_id,omitempty"`
	ID              int64           `json:"id"`
	TaxYear         int             `json:"tax_year"`
}

// Recompute sets QualifiedAmount from the record's gross amount and factor.
func (r *QualifiedRecord) Recompute() {
	r.QualifiedAmount = QualifiedAmount(r.GrossAmount, r.Factor)
}
