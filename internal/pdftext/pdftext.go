// Package pdftext pulls the plain text out of PDF certificates and finds the
// labeled fields of the house template in it.
package pdftext

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/numeric"
)

// Labeled patterns of the certificate template. All of them are
// case-insensitive and let "." match line breaks.
var patterns = []struct {
	re    *regexp.Regexp
	field string
}{
	{field: model.ColIssuerTaxID, re: regexp.MustCompile(`(?is)RUT\s+Emisor\s*:?\s*([\d.\-Kk]+)`)},
	{field: model.ColIssuerName, re: regexp.MustCompile(`(?is)Nombre\s+Emisor\s*:?\s*([^\n]+)`)},
	{field: model.ColTaxYear, re: regexp.MustCompile(`(?is)(?:Año|Anio)\s+Tributario\s*:?\s*([0-9]{4})`)},
	{field: model.ColGrossAmount, re: regexp.MustCompile(`(?is)Monto\s+Bruto\s*:?\s*\$?\s*([\d.,]+)`)},
	{field: model.ColFactor, re: regexp.MustCompile(`(?is)Factor\s*:?\s*([\d.,]+)`)},
}

// DocumentFields lists the fields a certificate must yield, in the order they
// are reported when missing.
var DocumentFields = []string{
	model.ColIssuerTaxID,
	model.ColIssuerName,
	model.ColTaxYear,
	model.ColGrossAmount,
	model.ColFactor,
}

// ExtractText returns the text of every page, one line per line of text as
// laid out on the page. Text placed apart on the same line is separated by a
// space. Pages whose content cannot be decoded are skipped. A file that
// cannot be opened as a PDF fails with common.ErrUnreadableFile.
func ExtractText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: decode pdf: %v", common.ErrUnreadableFile, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnreadableFile, err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, line := range pageLines(page) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

// pageLines rebuilds the lines of a page from its positioned glyphs, in the
// order they are drawn. A change of baseline starts a new line; a horizontal
// jump past the end of the previous glyph inserts a space. A page whose
// content stream cannot be interpreted yields nothing.
func pageLines(page pdf.Page) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
		}
	}()

	var (
		cur  strings.Builder
		prev *pdf.Text
	)
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
		prev = nil
	}

	glyphs := page.Content().Text
	for i := range glyphs {
		g := &glyphs[i]
		if g.S == "\n" {
			flush()
			continue
		}
		if prev != nil {
			switch {
			case math.Abs(g.Y-prev.Y) > lineTolerance:
				flush()
			case g.X-(prev.X+prev.W) > spaceGap*g.FontSize:
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.S)
		prev = g
	}
	flush()

	return lines
}

// Layout tolerances, in points and in font sizes respectively.
const (
	lineTolerance = 1.0
	spaceGap      = 0.25
)

// ExtractFields searches text for each labeled field. Labels that are not
// found leave their field out of the result; this never fails.
func ExtractFields(text string) model.RawRecord {
	fields := make(model.RawRecord, len(patterns))
	for _, p := range patterns {
		if v, ok := common.FirstGroup(p.re, text); ok {
			fields[p.field] = v
		}
	}
	return fields
}

// MissingFields applies the materiality check to an extracted field set. It
// returns the names of the fields that are absent, unparsable or, for the
// amounts, not greater than zero. An empty result means the document can
// produce a record.
func MissingFields(fields model.RawRecord) []string {
	var missing []string

	for _, name := range []string{model.ColIssuerTaxID, model.ColIssuerName} {
		if _, ok := fields.Text(name); !ok {
			missing = append(missing, name)
		}
	}

	if _, err := numeric.ParseInt(fields[model.ColTaxYear]); err != nil {
		missing = append(missing, model.ColTaxYear)
	}

	for _, name := range []string{model.ColGrossAmount, model.ColFactor} {
		d, err := numeric.Parse(fields[name])
		if err != nil || !d.IsPositive() {
			missing = append(missing, name)
		}
	}

	return missing
}

// RejectionMessage renders the status message of a document that failed the
// materiality check.
func RejectionMessage(missing []string) string {
	return "document is missing required fields: " + strings.Join(missing, ", ")
}
