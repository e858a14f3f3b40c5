package strategy

import (
	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
)

// MACrossParams tunes the MA cross + RSI detector. It is off unless Enabled.
type MACrossParams struct {
	Enabled    bool    `yaml:"enabled"`
	FastPeriod int     `yaml:"fast_period" default:"10" validate:"min=1"`
	SlowPeriod int     `yaml:"slow_period" default:"50" validate:"min=2,gtfield=FastPeriod"`
	RSIPeriod  int     `yaml:"rsi_period" default:"14" validate:"min=2"`
	Oversold   float64 `yaml:"oversold" default:"30" validate:"gt=0,lt=100"`
	Overbought float64 `yaml:"overbought" default:"70" validate:"gt=0,lt=100,gtfield=Oversold"`
}

// MACross implements a simple SMA crossover gated by RSI.
//
// Buy signal: fast SMA crosses above slow SMA while RSI < Oversold
// Sell signal: fast SMA crosses below slow SMA while RSI > Overbought
type MACross struct {
	p        MACrossParams
	exits    Exits
	interval string
}

// NewMACross creates a new SMA crossover detector.
// FastPeriod < SlowPeriod (e.g., 10 and 50).
func NewMACross(p MACrossParams, exits Exits, interval string) *MACross {
	return &MACross{p: p, exits: exits, interval: interval}
}

func (s *MACross) Name() string { return "MA Cross+RSI" }

// Lookback needs the slow SMA on both of the last two bars.
func (s *MACross) Lookback() int {
	return max(s.p.SlowPeriod, s.p.RSIPeriod) + 1
}

func (s *MACross) Detect(symbol string, w model.Window) *model.Signal {
	n := w.Len()
	if n < s.Lookback() || n < 2 {
		return nil
	}
	i := n - 1

	closes := w.Closes()
	fast := indicator.SMA(closes, s.p.FastPeriod)
	slow := indicator.SMA(closes, s.p.SlowPeriod)
	rsi := indicator.RSI(closes, s.p.RSIPeriod)[i]
	if !indicator.AllDefined(fast[i], fast[i-1], slow[i], slow[i-1], rsi) {
		return nil
	}

	// Golden cross: fast crosses above slow
	if fast[i-1] < slow[i-1] && fast[i] > slow[i] && rsi < s.p.Oversold {
		return newSignal(symbol, s.Name(), s.interval, model.Long, w[i], s.exits)
	}

	// Death cross: fast crosses below slow
	if fast[i-1] > slow[i-1] && fast[i] < slow[i] && rsi > s.p.Overbought {
		return newSignal(symbol, s.Name(), s.interval, model.Short, w[i], s.exits)
	}

	return nil
}
