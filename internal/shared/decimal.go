package shared

import "github.com/shopspring/decimal"

// FitsScale reports whether d has at most places fractional digits.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}
