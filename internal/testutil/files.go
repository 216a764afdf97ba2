package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// TaxHeader is the header row of a well-formed tax upload.
var TaxHeader = []string{
	"RUT Contribuyente", "Nombre Contribuyente", "RUT Emisor", "Nombre Emisor",
	"Monto Bruto", "Factor", "Anio Tributario",
}

// WriteCSV writes header and rows as a CSV file in a temp dir and returns
// its path.
func WriteCSV(t *testing.T, name string, header []string, rows ...[]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path) //nolint:gosec // test temp dir
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("failed to write rows: %v", err)
	}
	return path
}

// WriteXLSX writes header and rows to the first sheet of a new workbook in
// a temp dir and returns its path.
func WriteXLSX(t *testing.T, name string, header []string, rows ...[]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("bad cell: %v", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("failed to write row %d: %v", i+2, err)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save %s: %v", path, err)
	}
	return path
}

// WritePDF renders each line as its own text cell of a one-page PDF and
// returns the file path. Only ASCII text is portable across the core fonts.
func WritePDF(t *testing.T, name string, lines ...string) string {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	for _, line := range lines {
		doc.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}

	path := filepath.Join(t.TempDir(), name)
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
