// Package amount parses user-entered amounts and renders them to a fixed
// number of significant figures.
package amount

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SigFigs is the display precision of every rendered amount.
const SigFigs = 4

var (
	ErrEmpty        = errors.New("empty amount")
	ErrInvalid      = errors.New("invalid amount")
	ErrUnknownPrice = errors.New("unknown price")
)

// Clean strips whitespace and a leading currency symbol.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	return strings.TrimSpace(s)
}

// Parse parses user-entered text as a non-negative decimal.
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(Clean(raw), ",", "")
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalid
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalid
	}
	return d, nil
}

// RoundSig rounds d to sig significant figures.
func RoundSig(d decimal.Decimal, sig int32) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	// NumDigits+Exponent is the count of digits left of the decimal point.
	places := sig - (int32(d.NumDigits()) + d.Exponent())
	return d.Round(places)
}

// Format renders d with SigFigs significant figures and no trailing zeros.
func Format(d decimal.Decimal) string {
	return RoundSig(d, SigFigs).String()
}

// ToUSD converts a token quantity at the given unit price.
func ToUSD(qty, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, ErrUnknownPrice
	}
	return qty.Mul(price), nil
}

// FromUSD converts a USD value into a token quantity. A zero price is
// unknown and never used as a denominator.
func FromUSD(usd, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, ErrUnknownPrice
	}
	return usd.DivRound(price, 18), nil
}

// FromJSON converts a decoded JSON scalar (json.Number, string or float64)
// into a decimal.
func FromJSON(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Zero, false
}
