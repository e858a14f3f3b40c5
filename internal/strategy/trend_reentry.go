package strategy

import (
	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
)

// TrendReentryParams tunes the RSI+MA+Volume detector.
type TrendReentryParams struct {
	RSIPeriod    int     `yaml:"rsi_period" default:"14" validate:"min=2"`
	EMAPeriod    int     `yaml:"ema_period" default:"21" validate:"min=2"`
	VolumePeriod int     `yaml:"volume_period" default:"20" validate:"min=1"`
	Oversold     float64 `yaml:"oversold" default:"30" validate:"gt=0,lt=100"`
	Overbought   float64 `yaml:"overbought" default:"70" validate:"gt=0,lt=100,gtfield=Oversold"`
}

// TrendReentry fires on an oversold bounce that crosses back above the trend
// EMA with volume confirmation, or the overbought mirror.
//
// LONG:  RSI < Oversold,   prev close < EMA, close > EMA, volume > avg
// SHORT: RSI > Overbought, prev close > EMA, close < EMA, volume > avg
type TrendReentry struct {
	p        TrendReentryParams
	exits    Exits
	interval string
}

// NewTrendReentry creates an RSI+MA+Volume detector.
func NewTrendReentry(p TrendReentryParams, exits Exits, interval string) *TrendReentry {
	return &TrendReentry{p: p, exits: exits, interval: interval}
}

func (s *TrendReentry) Name() string { return "RSI+MA+Volume" }

func (s *TrendReentry) Lookback() int {
	return max(s.p.RSIPeriod, s.p.VolumePeriod, s.p.EMAPeriod) + 1
}

func (s *TrendReentry) Detect(symbol string, w model.Window) *model.Signal {
	n := w.Len()
	if n < s.Lookback() || n < 2 {
		return nil
	}
	i := n - 1

	closes := w.Closes()
	rsi := indicator.RSI(closes, s.p.RSIPeriod)[i]
	ema := indicator.EMA(closes, s.p.EMAPeriod)
	avgVol, ok := indicator.TrailingMean(w.Volumes(), i, s.p.VolumePeriod)
	if !ok || !indicator.AllDefined(rsi, ema[i], ema[i-1]) {
		return nil
	}

	cur, prev := w[i], w[i-1]
	if cur.Volume <= avgVol {
		return nil
	}

	switch {
	case rsi < s.p.Oversold && prev.Close < ema[i-1] && cur.Close > ema[i]:
		return newSignal(symbol, s.Name(), s.interval, model.Long, cur, s.exits)
	case rsi > s.p.Overbought && prev.Close > ema[i-1] && cur.Close < ema[i]:
		return newSignal(symbol, s.Name(), s.interval, model.Short, cur, s.exits)
	}
	return nil
}
