package strategy

import (
	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
)

// MomentumParams tunes the EMA/VWAP/StochRSI detector.
type MomentumParams struct {
	FastEMA      int     `yaml:"fast_ema" default:"9" validate:"min=1"`
	SlowEMA      int     `yaml:"slow_ema" default:"21" validate:"min=2,gtfield=FastEMA"`
	VolumePeriod int     `yaml:"volume_period" default:"20" validate:"min=1"`
	RSIPeriod    int     `yaml:"rsi_period" default:"14" validate:"min=2"`
	KSmooth      int     `yaml:"k_smooth" default:"3" validate:"min=1"`
	DSmooth      int     `yaml:"d_smooth" default:"3" validate:"min=1"`
	KCeiling     float64 `yaml:"k_ceiling" default:"20" validate:"gt=0,lte=100"`
}

// Momentum is a LONG-only confirmation detector. It fires when, on the last
// bar:
//
//   - EMA(fast) crosses above EMA(slow) (fast was below slow on the previous bar)
//   - close is above the window VWAP
//   - volume is above its trailing average
//   - StochRSI K > D with K < KCeiling
type Momentum struct {
	p        MomentumParams
	exits    Exits
	interval string
}

// NewMomentum creates an EMA/VWAP/StochRSI detector.
func NewMomentum(p MomentumParams, exits Exits, interval string) *Momentum {
	return &Momentum{p: p, exits: exits, interval: interval}
}

func (m *Momentum) Name() string { return "EMA/VWAP/StochRSI" }

func (m *Momentum) Lookback() int {
	return max(
		indicator.StochRSIWarmup(m.p.RSIPeriod, m.p.KSmooth, m.p.DSmooth),
		m.p.SlowEMA+1,
		m.p.VolumePeriod+1,
	)
}

func (m *Momentum) Detect(symbol string, w model.Window) *model.Signal {
	n := w.Len()
	if n < m.Lookback() || n < 2 {
		return nil
	}
	i := n - 1

	closes := w.Closes()
	fast := indicator.EMA(closes, m.p.FastEMA)
	slow := indicator.EMA(closes, m.p.SlowEMA)
	k, d := indicator.StochRSI(closes, m.p.RSIPeriod, m.p.KSmooth, m.p.DSmooth)
	vwap, vwapOK := indicator.VWAP(w)
	avgVol, volOK := indicator.TrailingMean(w.Volumes(), i, m.p.VolumePeriod)
	if !vwapOK || !volOK || !indicator.AllDefined(fast[i], fast[i-1], slow[i], slow[i-1], k[i], d[i]) {
		return nil
	}

	cur := w[i]
	crossedUp := fast[i-1] < slow[i-1] && fast[i] > slow[i]
	if crossedUp &&
		cur.Close > vwap &&
		cur.Volume > avgVol &&
		k[i] > d[i] && k[i] < m.p.KCeiling {
		return newSignal(symbol, m.Name(), m.interval, model.Long, cur, m.exits)
	}
	return nil
}
