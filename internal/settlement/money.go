package settlement

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	amountPlaces = 5
	ratePlaces   = 4
)

// Round5 rounds x to the canonical five-decimal amount unit, half away from zero.
func Round5(x float64) float64 {
	return roundTo(x, amountPlaces)
}

// Round4 rounds an exchange rate to four decimals.
func Round4(x float64) float64 {
	return roundTo(x, ratePlaces)
}

// Round2 rounds an amount for display at cent precision.
func Round2(x float64) float64 {
	return roundTo(x, 2)
}

func roundTo(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func nonNegative(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}
