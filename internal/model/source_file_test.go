package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindFromExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     FileKind
		ok       bool
	}{
		{"data.csv", KindCSV, true},
		{"DATA.XLSX", KindXLSX, true},
		{"legacy.xls", KindXLS, true},
		{"certificate.Pdf", KindPDF, true},
		{"notes.txt", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := KindFromExtension(tt.filename)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestQualifiedAmount(t *testing.T) {
	tests := []struct {
		gross  string
		factor string
		want   string
	}{
		{"1000", "0.5", "500"},
		{"3200000", "110.00000", "352000000"},
		{"100.005", "1", "100.01"},
		{"10", "0.3333", "3.33"},
	}

	for _, tt := range tests {
		got := QualifiedAmount(decimal.RequireFromString(tt.gross), decimal.RequireFromString(tt.factor))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
	}
}

func TestRawRecord_Text(t *testing.T) {
	rec := RawRecord{
		"blank":  "   ",
		"name":   "  Acme SA ",
		"amount": decimal.RequireFromString("12.50"),
		"year":   int64(2024),
		"nil":    nil,
	}

	s, ok := rec.Text("name")
	assert.True(t, ok)
	assert.Equal(t, "Acme SA", s)

	_, ok = rec.Text("blank")
	assert.False(t, ok)

	_, ok = rec.Text("nil")
	assert.False(t, ok)

	_, ok = rec.Text("missing")
	assert.False(t, ok)

	s, _ = rec.Text("year")
	assert.Equal(t, "2024", s)

	s, _ = rec.Text("amount")
	assert.Equal(t, "12.5", s)
}
