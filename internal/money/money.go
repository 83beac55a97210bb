// Package money rounds and formats reported figures. Amounts are carried as
// float64 through the analysis code and pass through decimal arithmetic here
// before being reported, so totals do not pick up binary rounding noise.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// NaN and infinities are returned as 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Round1 rounds to one decimal place, used for percentages.
func Round1(v float64) float64 {
	return Round(v, 1)
}

// Sum adds values using decimal arithmetic.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// Percent returns part/whole*100, or 0 when whole is zero.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// Format renders an amount as a dollar string with thousands separators,
// for example -1234.5 becomes "-$1,234.50".
func Format(v float64) string {
	d := decimal.NewFromFloat(Round2(v))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
