package types

import "github.com/shopspring/decimal"

var centsPerDollar = decimal.NewFromInt(100)

// FormatUSD renders minor currency units as a display dollar amount.
func FormatUSD(cents int64) string {
	return "$" + decimal.NewFromInt(cents).Div(centsPerDollar).StringFixed(2)
}

// PercentFunded computes a clamped 0-100 progress value from two counters.
func PercentFunded(funded, goal int64) int {
	if goal <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(funded).
		Div(decimal.NewFromInt(goal)).
		Mul(centsPerDollar).
		IntPart()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}
