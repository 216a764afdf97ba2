// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical column names shared by tabular uploads and PDF field sets.
const (
	ColContributorTaxID = "rut_contribuyente"
	ColContributorName  = "nombre_contribuyente"
	ColIssuerTaxID      = "rut_emisor"
	ColIssuerName       = "nombre_emisor"
	ColGrossAmount      = "monto_bruto"
	ColFactor           = "factor"
	ColTaxYear          = "anio_tributario"
)

// RequiredColumns lists the columns every tabular upload must carry, in the
// order they are reported when missing.
var RequiredColumns = []string{
	ColContributorTaxID,
	ColContributorName,
	ColIssuerTaxID,
	ColIssuerName,
	ColGrossAmount,
	ColFactor,
	ColTaxYear,
}

// RawRecord maps a normalized column name to the raw cell value of one input
// row, or to one extracted PDF field. Values are nil, string, or numeric
// (decimal.Decimal, int, int64, float64). It only lives during ingestion.
type RawRecord map[string]any

// Text returns the trimmed textual form of a field and whether it carries a
// non-blank value.
func (r RawRecord) Text(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case decimal.Decimal:
		s = val.String()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

// Has reports whether the record carries the key at all, blank or not.
func (r RawRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}
