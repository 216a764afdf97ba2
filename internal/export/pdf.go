package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Veraticus/nuam/internal/service"
)

// ManagementReport is the content of the management PDF.
type ManagementReport struct {
	GeneratedAt time.Time
	Dashboard   *service.DashboardSummary
	Years       []service.YearSummary
}

// ManagementPDF renders the dashboard counters and the per-year table.
func ManagementPDF(w io.Writer, rep ManagementReport) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Management report", true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "Management report", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, 6, "Generated "+rep.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	doc.Ln(4)

	if d := rep.Dashboard; d != nil {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, "Overview", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		for _, kv := range []struct {
			label string
			value int
		}{
			{"Qualified records", d.Records},
			{"Spreadsheet uploads", d.TabularFiles},
			{"PDF documents", d.PDFDocuments},
			{"Validation errors", d.ValidationErrors},
		} {
			doc.CellFormat(70, 7, kv.label, "", 0, "L", false, 0, "")
			doc.CellFormat(30, 7, strconv.Itoa(kv.value), "", 1, "R", false, 0, "")
		}
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, "Consolidated by tax year", "", 1, "L", false, 0, "")

	widths := []float64{30, 30, 55, 55}
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	for i, h := range []string{"Tax year", "Records", "Gross amount", "Qualified amount"} {
		doc.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, y := range rep.Years {
		doc.CellFormat(widths[0], 7, strconv.Itoa(y.TaxYear), "1", 0, "C", false, 0, "")
		doc.CellFormat(widths[1], 7, strconv.Itoa(y.Count), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[2], 7, y.TotalGross.StringFixed(2), "1", 0, "R", false, 0, "")
		doc.CellFormat(widths[3], 7, y.TotalQualified.StringFixed(2), "1", 0, "R", false, 0, "")
		doc.Ln(-1)
	}
	if len(rep.Years) == 0 {
		doc.CellFormat(0, 7, "No records.", "", 1, "L", false, 0, "")
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("failed to render management report: %w", err)
	}
	return nil
}
