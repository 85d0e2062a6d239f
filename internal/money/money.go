// Package money provides minor-unit monetary primitives and tax aggregation.
package money

import (
	"fmt"
	"math"
)

// Amount is a monetary value in minor units (cents) with an explicit currency.
type Amount struct {
	Minor    int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New builds an Amount in the given currency.
func New(minor int64, currency string) Amount {
	return Amount{Minor: minor, Currency: currency}
}

// TaxLine is a single calculated-tax entry attached to a price.
type TaxLine struct {
	Tax  float64 `json:"tax"`
	Rate float64 `json:"taxRate"`
}

// ToMinor converts a major-unit decimal value to minor units.
// Rounding is half away from zero, applied consistently for all callers.
func ToMinor(major float64) int64 {
	if major >= 0 {
		return int64(math.Floor(major*100 + 0.5))
	}
	return -int64(math.Floor(-major*100 + 0.5))
}

// FormatMajor renders a minor-unit value as a two-decimal major-unit string,
// e.g. 1050 -> "10.50". No floating point is involved.
func FormatMajor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// SumTax aggregates the tax component of every calculated-tax entry in minor
// units. Lines at different rates are summed, never merged by rate.
func SumTax(lines []TaxLine) int64 {
	var total int64
	for _, line := range lines {
		total += ToMinor(line.Tax)
	}
	return total
}
