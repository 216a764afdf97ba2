// Package tabular loads CSV and Excel uploads into row-oriented tables keyed
// by normalized column names.
package tabular

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
)

// Table is the in-memory form of one uploaded sheet.
type Table struct {
	Columns []string
	Rows    []model.RawRecord
}

// HasColumn reports whether the table carries the normalized column name.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// MissingColumns returns the entries of required the table lacks, in the
// order given.
func (t *Table) MissingColumns(required []string) []string {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// NormalizeColumn trims, lower-cases and replaces spaces with underscores so
// "RUT Emisor" and "rut_emisor" name the same column.
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// Extract reads the file at path according to ext (".csv", ".xlsx" or
// ".xls", case-insensitive). Any other extension fails with
// common.ErrUnsupportedFormat before the file is opened. Parse failures are
// wrapped in common.ErrUnreadableFile and no partial table is returned.
func Extract(path, ext string) (*Table, error) {
	var (
		grid [][]string
		err  error
	)

	switch strings.ToLower(ext) {
	case ".csv":
		grid, err = readCSV(path)
	case ".xlsx":
		grid, err = readXLSX(path)
	case ".xls":
		grid, err = readXLS(path)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnreadableFile, err)
	}

	table, err := build(grid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnreadableFile, err)
	}
	return table, nil
}

// build turns a grid whose first row is the header into a Table. Fully blank
// rows are skipped.
func build(grid [][]string) (*Table, error) {
	if len(grid) == 0 || isBlank(grid[0]) {
		return nil, fmt.Errorf("no header row")
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = NormalizeColumn(h)
	}

	body := make([][]string, 0, len(grid)-1)
	for _, row := range grid[1:] {
		if !isBlank(row) {
			body = append(body, row)
		}
	}

	numeric := numericColumns(header, body)

	table := &Table{Rows: make([]model.RawRecord, 0, len(body))}
	for _, name := range header {
		if name == "" || table.HasColumn(name) {
			continue
		}
		table.Columns = append(table.Columns, name)
	}

	for _, row := range body {
		rec := make(model.RawRecord, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if _, seen := rec[name]; seen {
				continue
			}
			rec[name] = cellValue(row, i, numeric[i])
		}
		table.Rows = append(table.Rows, rec)
	}

	return table, nil
}

var plainNumber = regexp.MustCompile(`^[+-]?\d+(\.\d+)?([eE][+-]?\d+)?$`)

// isIdentityColumn reports whether name holds a tax id or a name. Those stay
// text even when every cell is digits, so leading zeros survive.
func isIdentityColumn(name string) bool {
	return strings.HasPrefix(name, "rut_") || strings.HasPrefix(name, "nombre_")
}

// numericColumns flags the columns whose every non-blank cell is a plain
// dot-decimal number. Those cells are handed on as decimals; everything else
// stays text for the locale-aware normalizer.
func numericColumns(header []string, body [][]string) []bool {
	flags := make([]bool, len(header))
	for i, name := range header {
		if isIdentityColumn(name) {
			continue
		}
		seen := false
		numeric := true
		for _, row := range body {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			seen = true
			if !plainNumber.MatchString(cell) {
				numeric = false
				break
			}
		}
		flags[i] = seen && numeric
	}
	return flags
}

func cellValue(row []string, i int, numeric bool) any {
	if i >= len(row) {
		return nil
	}
	cell := strings.TrimSpace(row[i])
	if cell == "" {
		return nil
	}
	if numeric {
		if d, err := decimal.NewFromString(cell); err == nil {
			return d
		}
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
