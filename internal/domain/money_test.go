package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_ToDecimal(t *testing.T) {
	m := NewMoney(10_500_000) // 10.50
	assert.Equal(t, "10.5", m.ToDecimal().String())
	assert.Equal(t, "10.50", m.String())
	assert.Equal(t, int64(10), m.WholeUnits())
}

func TestFromDecimal(t *testing.T) {
	assert.Equal(t, int64(10_500_000), FromDecimal(decimal.NewFromFloat(10.50)))
	// truncates, never rounds up
	assert.Equal(t, int64(1), FromDecimal(decimal.RequireFromString("0.0000019")))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{in: "300", want: 300_000_000, ok: true},
		{in: " 0.25 ", want: 250_000, ok: true},
		{in: "1.000001", want: 1_000_001, ok: true},
		{in: "1.0000001", ok: false},
		{in: "", ok: false},
		{in: "abc", ok: false},
		{in: "9223372036854.775807", want: math.MaxInt64, ok: true},
		{in: "-9223372036854.775808", want: math.MinInt64, ok: true},
		{in: "9223372036854.775808", ok: false},
		{in: "18446744073709.551617", ok: false},
		{in: "9300000000000", ok: false},
		{in: "-9300000000000", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmountOutOfRange(t *testing.T) {
	_, err := ParseAmount("18446744073709.551617")
	require.ErrorIs(t, err, ErrAmountOutOfRange)
}
