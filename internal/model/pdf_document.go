package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PDFDocument keeps the fields extracted from an uploaded PDF certificate,
// whether or not they were complete enough to produce a record.
type PDFDocument struct {
	UploadedAt   time.Time        `json:"uploaded_at"`
	GrossAmount  *decimal.Decimal `json:"gross_amount,omitempty"`
	Factor       *decimal.Decimal `json:"factor,omitempty"`
	TaxYear      *int             `json:"tax_year,omitempty"`
	Name         string           `json:"name"`
	IssuerTaxID  string           `json:"issuer_tax_id"`
	IssuerName   string           `json:"issuer_name"`
	Status       FileStatus       `json:"status"`
	ID           int64            `json:"id"`
	SourceFileID int64            `json:"source_file_id"`
	OwnerID      int64            `json:"owner_id"`
	RecordID     *int64           `json:"record_id,omitempty"`
}
