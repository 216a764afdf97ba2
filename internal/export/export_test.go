package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

func TestExcel(t *testing.T) {
	records := []model.QualifiedRecord{{
		ID:          7,
		Issuer:      model.Issuer{ID: 1, TaxID: "76.123.456-K", Name: "Andina SpA"},
		BrokerLabel: "broker",
		TaxYear:     2024,
		GrossAmount: decimal.RequireFromString("1000"),
		Factor:      decimal.RequireFromString("0.5"),
		Status:      model.RecordPending,
		Source:      model.SourceSpreadsheet,
	}}
	records[0].Recompute()

	var buf bytes.Buffer
	require.NoError(t, Excel(&buf, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{RecordsSheet}, f.GetSheetList())
	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, RecordColumns, rows[0])
	assert.Equal(t, []string{"7", "Andina SpA (76.123.456-K)", "broker", "2024", "1000", "0.5", "500", "PENDING", "SPREADSHEET"}, rows[1])
}

func TestExcel_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Excel(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(RecordsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestManagementPDF(t *testing.T) {
	var buf bytes.Buffer
	err := ManagementPDF(&buf, ManagementReport{
		GeneratedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Dashboard:   &service.DashboardSummary{Records: 3, TabularFiles: 1},
		Years: []service.YearSummary{{
			TaxYear:        2024,
			Count:          3,
			TotalGross:     decimal.NewFromInt(300),
			TotalQualified: decimal.NewFromInt(150),
		}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
