package indicator

import "math"

// SMA calculates the Simple Moving Average over a rolling window of period
// values. Index i is defined once period values ending at i are available
// and none of them is NaN.
func SMA(series []float64, period int) []float64 {
	out := nanSeries(len(series))
	if period < 1 {
		return out
	}

	sum := 0.0
	bad := 0 // NaN count inside the window
	for i, v := range series {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= period {
			old := series[i-period]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i >= period-1 && bad == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// TrailingMean returns the mean of the period values immediately before
// index i, excluding i itself. ok is false when fewer than period values
// precede i.
func TrailingMean(series []float64, i, period int) (mean float64, ok bool) {
	if period < 1 || i-period < 0 || i > len(series) {
		return 0, false
	}
	sum := 0.0
	for _, v := range series[i-period : i] {
		sum += v
	}
	return sum / float64(period), true
}

// TrailingMax returns the maximum of the period values before index i.
func TrailingMax(series []float64, i, period int) (float64, bool) {
	if period < 1 || i-period < 0 || i > len(series) {
		return 0, false
	}
	m := math.Inf(-1)
	for _, v := range series[i-period : i] {
		m = math.Max(m, v)
	}
	return m, true
}

// TrailingMin returns the minimum of the period values before index i.
func TrailingMin(series []float64, i, period int) (float64, bool) {
	if period < 1 || i-period < 0 || i > len(series) {
		return 0, false
	}
	m := math.Inf(1)
	for _, v := range series[i-period : i] {
		m = math.Min(m, v)
	}
	return m, true
}
