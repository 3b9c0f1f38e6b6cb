// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents and converted to and from decimal
// strings with github.com/shopspring/decimal.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol prefixes formatted amounts when none is configured.
const DefaultCurrencySymbol = "₹"

var hundred = decimal.NewFromInt(100)

// MaxAmountCents is the largest accepted amount or budget limit, 100
// billion in major units.
const MaxAmountCents int64 = 10_000_000_000_000

var (
	ErrAmountBelowCent = fmt.Errorf("%w: less than 0.01", ErrInvalidAmount)
	ErrAmountTooLarge  = fmt.Errorf("%w: more than %s", ErrInvalidAmount, Money{Cents: MaxAmountCents})
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Only strictly positive
// plain decimals up to MaxAmountCents are accepted.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("0.004") -> 0, ErrAmountBelowCent
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	cents, err := MoneyFromDecimal(d)
	switch {
	case err != nil || cents > MaxAmountCents:
		return 0, ErrAmountTooLarge
	case cents == 0:
		return 0, ErrAmountBelowCent
	}
	return cents, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// parseCents parses any signed decimal into cents without range checks.
func parseCents(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal converts a decimal amount to cents, rounding to two places.
func MoneyFromDecimal(d decimal.Decimal) (int64, error) {
	c := d.Round(2).Mul(hundred).BigInt()
	if !c.IsInt64() {
		return 0, ErrInvalidAmount
	}
	return c.Int64(), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format prefixes the two-decimal amount with a currency symbol, e.g. "₹12.50".
// Negative amounts keep the sign after the symbol ("₹-3.00").
func (m Money) Format(symbol string) string {
	return symbol + m.String()
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Range checks are
// left to Validate so that "-5" decodes and then fails validation.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*m = Money{}
		return nil
	}
	cents, err := parseCents(s)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
