// Package score rounds and formats rating statistics with decimal
// arithmetic so reported values do not carry binary float noise.
package score

import (
	"github.com/shopspring/decimal"
)

// Places is the number of decimals used for reported ratings and KPIs.
const Places = 2

// Round rounds v half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundAll rounds every value of m to Places decimals, returning a new map.
func RoundAll(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = Round(v, Places)
	}
	return out
}

// Format renders v with exactly places decimals, e.g. "4.50".
func Format(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Percent returns part/total*100 rounded to Places, 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(part)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100))
	return p.Round(Places).InexactFloat64()
}
