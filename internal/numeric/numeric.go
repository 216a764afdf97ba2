// Package numeric converts raw cell and field values into exact decimals.
//
// Text values use the Chilean convention: "." groups thousands and ","
// marks the decimal point, so "3.200.000,50" is 3200000.50.
package numeric

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrAbsent reports a missing or blank value. Callers decide whether
	// that is an error.
	ErrAbsent = errors.New("value absent")
	// ErrNotConvertible reports a value that is present but not a number.
	ErrNotConvertible = errors.New("value not convertible to a number")
)

// MaxExponent bounds the decimal exponent of an accepted value in either
// direction. Rounding a value with a larger exponent expands it digit by
// digit.
const MaxExponent = 30

var localeText = regexp.MustCompile(`^[+-]?[\d.,]+$`)

// CheckRange fails with ErrNotConvertible when d's exponent is outside
// [-MaxExponent, MaxExponent].
func CheckRange(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return fmt.Errorf("%w: exponent %d out of range", ErrNotConvertible, exp)
	}
	return nil
}

// Parse converts raw into a decimal. Numeric inputs convert directly; text
// is trimmed, stripped of every "." and then has every "," turned into ".".
// Results outside CheckRange fail with ErrNotConvertible.
func Parse(raw any) (decimal.Decimal, error) {
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if err := CheckRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func parse(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, ErrAbsent
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, ErrAbsent
		}
		return *v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case string:
		return ParseText(v)
	case []byte:
		return ParseText(string(v))
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrNotConvertible, raw)
	}
}

// ParseText applies the locale rule to a string. Only digits, separators
// and a leading sign are accepted, so exponent forms like "1e9" are not
// convertible.
func ParseText(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrAbsent
	}
	if !localeText.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotConvertible, s)
	}

	normalized := strings.ReplaceAll(s, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotConvertible, s)
	}
	return d, nil
}

// ParseInt converts raw into a whole number. Numeric inputs must carry no
// fractional part; text is trimmed and parsed as a base-10 integer.
func ParseInt(raw any) (int, error) {
	switch v := raw.(type) {
	case nil:
		return 0, ErrAbsent
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, ErrAbsent
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotConvertible, s)
		}
		return n, nil
	}

	d, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrNotConvertible, d)
	}
	return int(d.IntPart()), nil
}

// Optional returns a pointer to the parsed value, or nil when raw does not
// parse. It is meant for storing best-effort extractions.
func Optional(raw any) *decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		return nil
	}
	return &d
}
