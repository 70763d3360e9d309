// Package core holds the domain model shared by every layer: civil dates,
// ledger entities and money formatting.
//
// Amounts are decimal.Decimal end to end. Sums over the ledger must stay
// exact; only display percentages are allowed to pass through float64.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatVND renders an amount the way the app shows money to users:
// grouped thousands with dots and a trailing đồng sign, e.g. "1.250.000₫".
// Fractional đồng are rounded half-up; VND has no minor unit in practice.
func FormatVND(amount decimal.Decimal) string {
	v := amount.Round(0)
	neg := v.IsNegative()
	digits := v.Abs().String()

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	b.WriteRune('₫')
	return b.String()
}

// Percent returns part/total as a display percentage. Exactness is not
// required here: the figure is for message interpolation only.
func Percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	f, _ := part.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return f
}
