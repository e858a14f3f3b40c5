package indicator

// RSI calculates the Relative Strength Index over period price changes.
//
// Per step, gain = max(Δ,0) and loss = max(-Δ,0); the average gain and loss
// are simple rolling means of the last period steps. Index i is defined for
// i >= period. Degenerate windows resolve explicitly instead of producing
// Inf/NaN:
//
//	avgLoss == 0, avgGain > 0  → 100 (uptrend only)
//	avgLoss == 0, avgGain == 0 → 50  (flat)
func RSI(series []float64, period int) []float64 {
	n := len(series)
	out := nanSeries(n)
	if period < 1 || n <= period {
		return out
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i < n; i++ {
		gain, loss := split(series[i] - series[i-1])
		gainSum += gain
		lossSum += loss

		if i > period {
			// Drop the step that left the window.
			g, l := split(series[i-period] - series[i-period-1])
			gainSum -= g
			lossSum -= l
		}
		if i >= period {
			out[i] = rsiValue(gainSum/float64(period), lossSum/float64(period))
		}
	}
	return out
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	// Rolling sums can drift a hair below zero after subtraction.
	if avgLoss <= 1e-12 {
		if avgGain <= 1e-12 {
			return 50.0
		}
		return 100.0
	}
	if avgGain < 0 {
		avgGain = 0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
