// Package money implements the fixed-precision amount type used everywhere
// balances and entry amounts appear. Values are an int64 count of minor
// units (cents) at a fixed scale of 2; arithmetic never leaves integer
// space. decimal is used only at the edges: parsing, formatting and rate
// multiplication, where banker's rounding is applied exactly once.
package money

import (
	"math"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits carried by every amount.
const Scale = 2

// Money is an immutable amount in minor units.
type Money struct {
	units int64
}

// Zero is the zero amount.
var Zero = Money{}

// FromMinorUnits builds an amount from a raw minor-unit count.
func FromMinorUnits(units int64) Money {
	return Money{units: units}
}

// FromMajorUnits parses a decimal string such as "10.00" or "-3.5".
// More than Scale fraction digits is a validation error, not a rounding
// opportunity: callers must send amounts already at ledger precision.
func FromMajorUnits(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, errs.Wrap(errs.KindValidation, err, "malformed amount %q", s)
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return Zero, errs.New(errs.KindValidation, "amount %q exceeds %d fraction digits", s, Scale)
	}
	if !shifted.BigInt().IsInt64() {
		return Zero, errs.New(errs.KindOverflow, "amount %q out of range", s)
	}
	return Money{units: shifted.IntPart()}, nil
}

// MinorUnits returns the raw minor-unit count.
func (m Money) MinorUnits() int64 { return m.units }

// Add returns m+o, failing on int64 overflow.
func (m Money) Add(o Money) (Money, error) {
	sum := m.units + o.units
	if (o.units > 0 && sum < m.units) || (o.units < 0 && sum > m.units) {
		return Zero, errs.New(errs.KindOverflow, "amount overflow adding %s to %s", o, m)
	}
	return Money{units: sum}, nil
}

// Sub returns m-o. The result may be negative; debit callers check
// IsNegative before committing.
func (m Money) Sub(o Money) (Money, error) {
	if o.units == math.MinInt64 {
		return Zero, errs.New(errs.KindOverflow, "amount overflow subtracting from %s", m)
	}
	return m.Add(Money{units: -o.units})
}

// MulRate multiplies by an arbitrary-precision rate and rounds the result
// back to minor units with round-half-to-even. The rounding happens here
// and only here; intermediate math stays in decimal space.
func (m Money) MulRate(rate decimal.Decimal) (Money, error) {
	product := decimal.New(m.units, 0).Mul(rate).RoundBank(0)
	if !product.BigInt().IsInt64() {
		return Zero, errs.New(errs.KindOverflow, "amount overflow multiplying %s by %s", m, rate)
	}
	return Money{units: product.IntPart()}, nil
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{units: -m.units} }

// Cmp compares m against o: -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.units < o.units:
		return -1
	case m.units > o.units:
		return 1
	}
	return 0
}

func (m Money) IsNegative() bool { return m.units < 0 }

func (m Money) IsZero() bool { return m.units == 0 }

func (m Money) IsPositive() bool { return m.units > 0 }

// Decimal returns the amount as a decimal at ledger scale.
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.units, -Scale) }

// String renders the amount with exactly Scale fraction digits, e.g. "10.00".
func (m Money) String() string { return m.Decimal().StringFixed(Scale) }

// MarshalJSON encodes the amount as its display string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted or bare decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromMajorUnits(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
