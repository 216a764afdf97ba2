package sheets

import (
	"context"
	"time"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

// Report is the content published to the spreadsheet.
type Report struct {
	GeneratedAt time.Time
	Summary     service.RecordsSummary
	Years       []service.YearSummary
	Records     []model.QualifiedRecord
}

// ReportWriter publishes a report.
type ReportWriter interface {
	Write(ctx context.Context, report *Report) error
}

// detailHeader is the header of the record details table.
var detailHeader = []any{
	"ID", "Registered", "Issuer tax ID", "Issuer", "Broker", "Tax year",
	"Gross amount", "Factor", "Qualified amount", "Status", "Source",
}
