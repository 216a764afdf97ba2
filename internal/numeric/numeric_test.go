package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     any
		wantErr error
		name    string
		want    string
	}{
		{name: "thousands separators", raw: "3.200.000", want: "3200000"},
		{name: "decimal comma", raw: "110,00000", want: "110.00000"},
		{name: "both separators", raw: " 1.234,56 ", want: "1234.56"},
		{name: "negative", raw: "-5,5", want: "-5.5"},
		{name: "already numeric int", raw: 42, want: "42"},
		{name: "already numeric int64", raw: int64(7), want: "7"},
		{name: "already numeric float", raw: 0.25, want: "0.25"},
		{name: "already decimal", raw: decimal.RequireFromString("12.345"), want: "12.345"},
		{name: "empty string", raw: "", wantErr: ErrAbsent},
		{name: "blank string", raw: "   ", wantErr: ErrAbsent},
		{name: "nil", raw: nil, wantErr: ErrAbsent},
		{name: "letters", raw: "abc", wantErr: ErrNotConvertible},
		{name: "several decimal commas", raw: "1,2,3", wantErr: ErrNotConvertible},
		{name: "unsupported type", raw: true, wantErr: ErrNotConvertible},
		{name: "exponent text", raw: "1e9999999", wantErr: ErrNotConvertible},
		{name: "small exponent text", raw: "1E3", wantErr: ErrNotConvertible},
		{name: "huge decimal", raw: decimal.New(1, 9999999), wantErr: ErrNotConvertible},
		{name: "tiny decimal", raw: decimal.New(1, -9999999), wantErr: ErrNotConvertible},
		{name: "decimal at the bound", raw: decimal.New(1, MaxExponent), want: "1e30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParse_AbsentAndNotConvertibleAreDistinct(t *testing.T) {
	_, absent := Parse("")
	_, bad := Parse("abc")

	assert.ErrorIs(t, absent, ErrAbsent)
	assert.NotErrorIs(t, absent, ErrNotConvertible)
	assert.ErrorIs(t, bad, ErrNotConvertible)
	assert.NotErrorIs(t, bad, ErrAbsent)
}

func TestParse_KeepsScale(t *testing.T) {
	got, err := Parse("110,00000")
	require.NoError(t, err)
	assert.Equal(t, "110.00000", got.StringFixed(5))
	assert.Equal(t, int32(-5), got.Exponent())
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(decimal.RequireFromString("3200000.50")))
	assert.NoError(t, CheckRange(decimal.New(5, -MaxExponent)))
	assert.ErrorIs(t, CheckRange(decimal.New(5, MaxExponent+1)), ErrNotConvertible)
	assert.ErrorIs(t, CheckRange(decimal.New(5, -MaxExponent-1)), ErrNotConvertible)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		raw     any
		wantErr error
		name    string
		want    int
	}{
		{name: "string", raw: "2024", want: 2024},
		{name: "padded string", raw: " 2023 ", want: 2023},
		{name: "int", raw: 2022, want: 2022},
		{name: "whole float", raw: float64(2021), want: 2021},
		{name: "whole decimal", raw: decimal.NewFromInt(2020), want: 2020},
		{name: "fractional float", raw: 2020.5, wantErr: ErrNotConvertible},
		{name: "text", raw: "abcd", wantErr: ErrNotConvertible},
		{name: "decimal text", raw: "2024.0", wantErr: ErrNotConvertible},
		{name: "blank", raw: " ", wantErr: ErrAbsent},
		{name: "nil", raw: nil, wantErr: ErrAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInt(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptional(t *testing.T) {
	assert.Nil(t, Optional("x"))
	assert.Nil(t, Optional(""))
	got := Optional("1.000")
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))
}
