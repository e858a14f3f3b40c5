package strategy

import (
	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
)

// BreakoutParams tunes the breakout detector.
type BreakoutParams struct {
	// Lookback is the trailing window for resistance, support and average
	// volume. The current bar is never part of it.
	Lookback         int     `yaml:"lookback" default:"20" validate:"min=2"`
	VolumeMultiplier float64 `yaml:"volume_multiplier" default:"1" validate:"gt=0"`
}

// Breakout fires when the close breaks out of the trailing high/low range on
// above-average volume.
//
// LONG:  prev close < resistance, close > resistance, volume > avg×mult
// SHORT: prev close > support,    close < support,    volume > avg×mult
//
// resistance = max(high) and support = min(low) over the Lookback bars
// before the current one. Since support <= resistance, at most one side can
// fire.
type Breakout struct {
	p        BreakoutParams
	exits    Exits
	interval string
}

// NewBreakout creates a breakout detector.
func NewBreakout(p BreakoutParams, exits Exits, interval string) *Breakout {
	return &Breakout{p: p, exits: exits, interval: interval}
}

func (b *Breakout) Name() string { return "Breakout" }

// Lookback covers the trailing range plus the current bar.
func (b *Breakout) Lookback() int { return b.p.Lookback + 1 }

func (b *Breakout) Detect(symbol string, w model.Window) *model.Signal {
	n := w.Len()
	if n < b.Lookback() || n < 2 {
		return nil
	}
	i := n - 1

	resistance, ok1 := indicator.TrailingMax(w.Highs(), i, b.p.Lookback)
	support, ok2 := indicator.TrailingMin(w.Lows(), i, b.p.Lookback)
	avgVol, ok3 := indicator.TrailingMean(w.Volumes(), i, b.p.Lookback)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	cur, prev := w[i], w[i-1]
	if cur.Volume <= avgVol*b.p.VolumeMultiplier {
		return nil
	}

	switch {
	case prev.Close < resistance && cur.Close > resistance:
		return newSignal(symbol, b.Name(), b.interval, model.Long, cur, b.exits)
	case prev.Close > support && cur.Close < support:
		return newSignal(symbol, b.Name(), b.interval, model.Short, cur, b.exits)
	}
	return nil
}
