// Package validation holds the business rules applied to ingested rows and
// to records entered by hand.
package validation

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/numeric"
)

// Rule messages.
const (
	MsgGrossNotNumeric   = "gross amount not numeric"
	MsgGrossNotPositive  = "gross amount must be greater than 0"
	MsgFactorNotNumeric  = "factor not numeric"
	MsgFactorNotPositive = "factor must be greater than 0"
	MsgTaxYearInvalid    = "tax year invalid"
	MsgTaxYearOutOfRange = "tax year out of range"
	MsgIssuerRequired    = "issuer is required"
	MsgStatusInvalid     = "status invalid"
)

// identityFields are the text columns that must be present and non-blank.
var identityFields = []string{
	model.ColContributorTaxID,
	model.ColContributorName,
	model.ColIssuerTaxID,
	model.ColIssuerName,
}

// Required renders the message for a missing or blank text field.
func Required(field string) string {
	return field + " is required"
}

// Row checks one raw input row and returns every rule it breaks, in rule
// order. An empty result means the row may become a record.
func Row(rec model.RawRecord) []string {
	var errs []string

	for _, field := range identityFields {
		if _, ok := rec.Text(field); !ok {
			errs = append(errs, Required(field))
		}
	}

	errs = appendPositive(errs, rec[model.ColGrossAmount], MsgGrossNotNumeric, MsgGrossNotPositive)
	errs = appendPositive(errs, rec[model.ColFactor], MsgFactorNotNumeric, MsgFactorNotPositive)

	year, err := numeric.ParseInt(rec[model.ColTaxYear])
	switch {
	case err != nil:
		errs = append(errs, MsgTaxYearInvalid)
	case !TaxYearInRange(year):
		errs = append(errs, MsgTaxYearOutOfRange)
	}

	return errs
}

func appendPositive(errs []string, raw any, notNumeric, notPositive string) []string {
	d, err := numeric.Parse(raw)
	if err != nil {
		return append(errs, notNumeric)
	}
	if !d.IsPositive() {
		return append(errs, notPositive)
	}
	return errs
}

// TaxYearInRange reports whether year lies in the accepted window.
func TaxYearInRange(year int) bool {
	return year >= model.MinTaxYear && year <= model.MaxTaxYear
}

// Record checks a record entered or edited by hand.
func Record(r *model.QualifiedRecord) []string {
	var errs []string

	if r.Issuer.ID == 0 {
		errs = append(errs, MsgIssuerRequired)
	}
	if !r.GrossAmount.GreaterThan(decimal.Zero) {
		errs = append(errs, MsgGrossNotPositive)
	}
	if !r.Factor.GreaterThan(decimal.Zero) {
		errs = append(errs, MsgFactorNotPositive)
	}
	if !TaxYearInRange(r.TaxYear) {
		errs = append(errs, MsgTaxYearOutOfRange)
	}
	if !r.Status.IsValid() {
		errs = append(errs, MsgStatusInvalid)
	}

	return errs
}
