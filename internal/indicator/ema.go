package indicator

// EMA calculates the Exponential Moving Average with smoothing factor
// α = 2/(span+1), seeded by the first value with no bias adjustment:
//
//	ema[0] = x[0]
//	ema[i] = α·x[i] + (1-α)·ema[i-1]
//
// Every index is defined. Returns nil for an empty series or span < 1.
func EMA(series []float64, span int) []float64 {
	if len(series) == 0 || span < 1 {
		return nil
	}
	multiplier := 2.0 / float64(span+1)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = (series[i] * multiplier) + (out[i-1] * (1 - multiplier))
	}
	return out
}
