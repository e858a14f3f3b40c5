package model

import "github.com/shopspring/decimal"

// FormatPrice renders a price with precision adapted to its magnitude:
// 2 decimal places from 1000 up, 4 from 1 up, 8 decimal places below that.
// Trailing zeros are trimmed.
func FormatPrice(v float64) string {
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	places := int32(8)
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		places = 2
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		places = 4
	}
	return d.Round(places).String()
}

// FormatPct renders a signed percentage with two decimals, e.g. "+2.50%".
func FormatPct(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	s := d.StringFixed(2)
	if d.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}
