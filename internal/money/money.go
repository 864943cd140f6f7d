/*
Package money provides the fixed-point decimal type used for every monetary
and multiplier value in the pricing and claims engines.

PURPOSE:
  Premiums, limits, accumulator balances and factor multipliers must never be
  represented as floating point: rounding drift compounds across a policy's
  member list and across a claim's rule set. This package wraps
  shopspring/decimal behind a narrow Decimal type with the rounding behavior
  this domain needs baked in (half-up, at presentation time only).

DESIGN PRINCIPLES:
  1. Add/Sub/Mul are exact; Div rounds its quotient to 16 fractional digits
     (shopspring/decimal's DivisionPrecision). Nothing else rounds except
     RoundPresentation.
  2. Division by zero yields Zero, not a panic or error (per-member averages
     when participant_count is 0 are a normal, not exceptional, case).
  3. Comparisons and sorting are exact; two Decimals are equal iff their
     numeric values are equal, independent of trailing zero formatting.

SEE ALSO:
  - internal/timeutil: the matching time-point package for age/period math.
*/
package money

import (
	"github.com/shopspring/decimal"
)

// Decimal is a fixed-point value with unlimited internal precision.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// One is the multiplicative identity.
var One = Decimal{d: decimal.NewFromInt(1)}

// New builds a Decimal from an integer amount, e.g. New(1_000_000) for Rp 1,000,000.
func New(value int64) Decimal {
	return Decimal{d: decimal.NewFromInt(value)}
}

// NewFromFloat builds a Decimal from a float64. Reserved for boundaries where
// the caller only has a float (e.g. a JSON field from an upstream system);
// never use this for a value computed within this package.
func NewFromFloat(value float64) Decimal {
	return Decimal{d: decimal.NewFromFloat(value)}
}

// Parse parses a decimal string. Returns Zero on malformed input — callers at
// a trust boundary (API, storage) should validate before relying on this.
func Parse(s string) Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return Decimal{d: d}
}

func (d Decimal) String() string { return d.d.String() }

func (d Decimal) Add(o Decimal) Decimal { return Decimal{d: d.d.Add(o.d)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{d: d.d.Sub(o.d)} }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{d: d.d.Mul(o.d)} }

// Div divides d by o, returning Zero when o is zero rather than panicking or
// propagating an error — §4.1 mandates this for per-member averages.
func (d Decimal) Div(o Decimal) Decimal {
	if o.IsZero() {
		return Zero
	}
	return Decimal{d: d.d.Div(o.d)}
}

func (d Decimal) Neg() Decimal { return Decimal{d: d.d.Neg()} }

func (d Decimal) IsZero() bool     { return d.d.IsZero() }
func (d Decimal) IsNegative() bool { return d.d.IsNegative() }
func (d Decimal) IsPositive() bool { return d.d.IsPositive() }

func (d Decimal) GreaterThan(o Decimal) bool        { return d.d.GreaterThan(o.d) }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.d.GreaterThanOrEqual(o.d) }
func (d Decimal) LessThan(o Decimal) bool           { return d.d.LessThan(o.d) }
func (d Decimal) LessThanOrEqual(o Decimal) bool     { return d.d.LessThanOrEqual(o.d) }
func (d Decimal) Equal(o Decimal) bool              { return d.d.Equal(o.d) }

func (d Decimal) Max(o Decimal) Decimal {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

func (d Decimal) Min(o Decimal) Decimal {
	if d.LessThan(o) {
		return d
	}
	return o
}

// RoundPresentation rounds half-up (half away from zero) to places fractional
// digits. Apart from Div's 16-digit quotient, this is the only place
// rounding happens; Add/Sub/Mul keep full precision. Monetary amounts here are never
// negative, so half-away-from-zero and half-up coincide.
func (d Decimal) RoundPresentation(places int32) Decimal {
	return Decimal{d: d.d.Round(places)}
}

// Float64 converts for JSON/API serialization of summary fields only (§9
// mixed-precision note) — never use the result in further arithmetic.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// MarshalJSON emits the decimal as a quoted JSON string (shopspring/decimal's
// default), consistent with how the rest of the API serializes monetary fields.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return d.d.MarshalJSON()
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	return d.d.UnmarshalJSON(data)
}
