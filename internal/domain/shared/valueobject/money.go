package valueobject

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol is the fixed prefix used when a monetary amount is displayed,
// the Taka sign followed by a space. The system handles a single currency.
const CurrencySymbol = "৳ "

// DisplayPlaces is the number of decimal places shown for monetary amounts
const DisplayPlaces = 2

// Money is a value object representing a monetary amount
// It is immutable - all operations return new Money instances
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates a new Money with the specified amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// Zero returns a zero-value Money
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MultiplyByInt returns a new Money multiplied by an integer
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// CalculatePercentage returns the percentage of this Money
func (m Money) CalculatePercentage(percent decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(percent).Div(decimal.NewFromInt(100))}
}

// String returns the display form with the currency prefix, e.g. "৳ 1218.00"
func (m Money) String() string {
	return FormatAmount(m.amount)
}

// StringFixed returns the amount as a string with fixed decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// MarshalJSON writes the amount as a bare JSON number
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string. Numbers keep every
// digit they were written with. Anything that does not parse as a finite
// number becomes zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	m.amount = Coerce(raw)
	return nil
}

// FormatAmount formats a decimal with the currency prefix and two decimal places.
// Negative amounts keep their sign in front of the symbol: "-৳ 5.00".
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + CurrencySymbol + d.Abs().StringFixed(DisplayPlaces)
	}
	return CurrencySymbol + d.StringFixed(DisplayPlaces)
}

// Coerce converts loosely typed numeric input to a decimal.
// Missing (nil), non-finite and unparseable values become zero; it never fails.
func Coerce(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case float64:
		return CoerceFloat(n)
	case float32:
		return CoerceFloat(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case json.Number:
		return coerceString(n.String())
	case string:
		return coerceString(n)
	case bool:
		return decimal.Zero
	}
	return decimal.Zero
}

// CoerceFloat converts a float64 to a decimal, mapping NaN and ±Inf to zero
func CoerceFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// NonNegative clamps a decimal to be at least zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func coerceString(s string) decimal.Decimal {
	m, err := NewMoneyFromString(s)
	if err != nil {
		return Zero().Amount()
	}
	return m.Amount()
}
