package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the fixed-point scale of every stored amount.
const MicrosPerUnit = 1_000_000

var (
	microsScale = decimal.NewFromInt(MicrosPerUnit)
	maxMicros   = decimal.NewFromInt(math.MaxInt64)
	minMicros   = decimal.NewFromInt(math.MinInt64)
)

// ErrAmountOutOfRange is returned for amounts that do not fit in int64 micros.
var ErrAmountOutOfRange = errors.New("amount out of range")

// Money is an amount of the platform currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount int64 // micros
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64) Money {
	return Money{Amount: amount}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(microsScale)
}

// WholeUnits returns the amount truncated to whole units.
func (m Money) WholeUnits() int64 {
	return m.Amount / MicrosPerUnit
}

// FromDecimal converts a decimal.Decimal to int64 micros, truncating toward zero.
// The caller must keep d within int64 micros; ParseAmount checks this.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(microsScale).Truncate(0).IntPart()
}

// ParseAmount parses a human amount such as "12.5" into micros.
// More than six fractional digits is rejected instead of silently rounded.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Exponent() < -6 {
		return 0, fmt.Errorf("amount %q has more than 6 decimal places", s)
	}
	micros := d.Mul(microsScale)
	if micros.GreaterThan(maxMicros) || micros.LessThan(minMicros) {
		return 0, fmt.Errorf("amount %q: %w", s, ErrAmountOutOfRange)
	}
	return micros.IntPart(), nil
}

// String returns the string representation of the money.
func (m Money) String() string {
	return m.ToDecimal().StringFixed(2)
}
