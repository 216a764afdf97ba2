// Package export renders records and reports as downloadable documents.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/nuam/internal/model"
)

// RecordsSheet is the sheet name of the Excel export.
const RecordsSheet = "Records"

// RecordColumns is the header row of the Excel export.
var RecordColumns = []string{
	"ID", "Issuer", "Broker", "Tax year", "Gross amount", "Factor", "Qualified amount", "Status", "Source",
}

// Excel writes records as an XLSX workbook with a single Records sheet.
func Excel(w io.Writer, records []model.QualifiedRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), RecordsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(RecordColumns))
	for i, c := range RecordColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(RecordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(RecordColumns), 1)
	if err := f.SetCellStyle(RecordsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.ID,
			r.Issuer.String(),
			r.BrokerLabel,
			r.TaxYear,
			r.GrossAmount.InexactFloat64(),
			r.Factor.InexactFloat64(),
			r.QualifiedAmount.InexactFloat64(),
			string(r.Status),
			string(r.Source),
		}
		if err := f.SetSheetRow(RecordsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
