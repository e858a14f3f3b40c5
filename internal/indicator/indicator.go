// Package indicator provides technical indicator calculations over bar windows.
//
// Every function is pure: it takes an ordered series (oldest first) and
// returns a series of the same length. Positions that cannot be computed yet
// (insufficient lookback) hold NaN; callers must test them with Defined
// before using them in a comparison.
package indicator

import "math"

// Defined reports whether v is a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllDefined reports whether every value is usable.
func AllDefined(vs ...float64) bool {
	for _, v := range vs {
		if !Defined(v) {
			return false
		}
	}
	return true
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
