package pattern

import "github.com/shopspring/decimal"

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// percentOf returns change/base*100 rounded to two places, or 0 for a zero base.
func percentOf(change, base float64) float64 {
	if base == 0 {
		return 0
	}
	return round2(change / base * 100)
}
