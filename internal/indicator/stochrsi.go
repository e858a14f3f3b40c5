package indicator

import "math"

// StochRSI applies the stochastic oscillator to RSI values.
//
//	%Stoch = (RSI - min(RSI, rsiPeriod)) / (max(RSI, rsiPeriod) - min(RSI, rsiPeriod)) × 100
//	K      = SMA(%Stoch, kSmooth)
//	D      = SMA(K, dSmooth)
//
// A flat RSI window (max == min) gives %Stoch = 0. K and D are clamped to
// [0,100] since the rolling sums in SMA drift by a few ulps over long
// series. K is first defined at
// index 2·rsiPeriod+kSmooth-2 and D at 2·rsiPeriod+kSmooth+dSmooth-3.
func StochRSI(series []float64, rsiPeriod, kSmooth, dSmooth int) (k, d []float64) {
	rsi := RSI(series, rsiPeriod)
	stoch := nanSeries(len(series))

	for i := range rsi {
		if i-rsiPeriod+1 < 0 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		defined := true
		for _, v := range rsi[i-rsiPeriod+1 : i+1] {
			if math.IsNaN(v) {
				defined = false
				break
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if !defined {
			continue
		}
		if hi-lo <= 1e-12 {
			stoch[i] = 0
			continue
		}
		stoch[i] = (rsi[i] - lo) / (hi - lo) * 100
	}

	k = clampPct(SMA(stoch, kSmooth))
	d = clampPct(SMA(k, dSmooth))
	return k, d
}

// clampPct pins defined values into [0,100] in place.
func clampPct(series []float64) []float64 {
	for i, v := range series {
		if math.IsNaN(v) {
			continue
		}
		series[i] = math.Min(100, math.Max(0, v))
	}
	return series
}

// StochRSIWarmup is the minimum number of bars for D to be defined at the
// last index.
func StochRSIWarmup(rsiPeriod, kSmooth, dSmooth int) int {
	return 2*rsiPeriod + kSmooth + dSmooth - 2
}
