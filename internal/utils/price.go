package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCLP renders an amount in Chilean pesos the way the storefront shows
// it: no decimals, dot as the thousands separator, e.g. "$ 25.000".
func FormatCLP(amount decimal.Decimal) string {
	s := amount.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$ " + b.String()
	}
	return "$ " + b.String()
}
