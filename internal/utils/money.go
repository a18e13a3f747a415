package utils

import (
	"math"
	"strings"
)

// Round2 rounds a monetary amount half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CalculateTax returns amount * rate rounded to two decimals.
func CalculateTax(amount, rate float64) float64 {
	return Round2(amount * rate)
}

// Stripe's exponent tables for currencies that do not use two decimals.
var (
	zeroDecimalCurrencies = map[string]bool{
		"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
		"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
		"VUV": true, "XAF": true, "XOF": true, "XPF": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"BHD": true, "IQD": true, "JOD": true, "KWD": true, "LYD": true, "OMR": true, "TND": true,
	}
)

// MinorUnitScale returns how many minor units make one unit of currency.
func MinorUnitScale(currency string) int64 {
	code := strings.ToUpper(currency)
	switch {
	case zeroDecimalCurrencies[code]:
		return 1
	case threeDecimalCurrencies[code]:
		return 1000
	default:
		return 100
	}
}

// ToMinorUnits converts an amount to the integer minor units expected by the gateway.
func ToMinorUnits(amount float64, currency string) int64 {
	return int64(math.Round(amount * float64(MinorUnitScale(currency))))
}

func FromMinorUnits(units int64, currency string) float64 {
	return Round2(float64(units) / float64(MinorUnitScale(currency)))
}
