package quote

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/RaghavSood/monswap/amount"
)

var hundred = decimal.NewFromInt(100)

// ExchangeRate renders "1 IN = x OUT" with x at display precision.
func ExchangeRate(inQty, outQty decimal.Decimal, inSymbol, outSymbol string) string {
	if !inQty.IsPositive() {
		return ""
	}
	return fmt.Sprintf("1 %s = %s %s", inSymbol, amount.Format(outQty.DivRound(inQty, 18)), outSymbol)
}

// DerivePriceImpact estimates price impact as the percentage of USD value
// lost between input and output. ok is false when either price is unknown.
func DerivePriceImpact(inQty, inPrice, outQty, outPrice decimal.Decimal) (impact decimal.Decimal, ok bool) {
	if !inPrice.IsPositive() || !outPrice.IsPositive() || !inQty.IsPositive() {
		return decimal.Zero, false
	}
	valueIn := inQty.Mul(inPrice)
	valueOut := outQty.Mul(outPrice)
	impact = valueIn.Sub(valueOut).DivRound(valueIn, 18).Mul(hundred)
	if impact.IsNegative() {
		impact = decimal.Zero
	}
	return impact, true
}

// FormatImpact renders a percentage with two decimals.
func FormatImpact(impact decimal.Decimal) string {
	return impact.StringFixed(2) + "%"
}
