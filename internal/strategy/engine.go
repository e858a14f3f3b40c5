// Package strategy provides the signal detectors evaluated on every scan.
//
// A Detector receives a symbol and its bar window and returns a Signal when
// its rule set fires, or nil. Detectors are stateless, so one instance is
// shared by every symbol and may run concurrently. The Registry holds the
// detectors in a fixed evaluation order.
package strategy

import (
	"fmt"

	"github.com/creasty/defaults"

	"trading-signals/internal/model"
)

// Detector is the interface that all strategy rule sets implement.
type Detector interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Lookback returns the minimum window length the detector needs.
	Lookback() int

	// Detect evaluates the rule set on the last bar of w.
	// Returns nil when nothing fires or the window is too short.
	Detect(symbol string, w model.Window) *model.Signal
}

// Exits is the fixed-percentage stop-loss / take-profit policy shared by all
// detectors. Percentages are fractions: 0.01 = 1%.
type Exits struct {
	StopLossPct   float64 `yaml:"stop_loss_pct" default:"0.01" validate:"gt=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" default:"0.025" validate:"gt=0,lt=1"`
}

// Levels returns the stop-loss and take-profit prices for an entry.
func (e Exits) Levels(side model.Side, entry float64) (sl, tp float64) {
	if side == model.Short {
		return entry * (1 + e.StopLossPct), entry * (1 - e.TakeProfitPct)
	}
	return entry * (1 - e.StopLossPct), entry * (1 + e.TakeProfitPct)
}

// Params groups the tunables of every detector.
type Params struct {
	Exits        Exits              `yaml:"exits"`
	Breakout     BreakoutParams     `yaml:"breakout"`
	TrendReentry TrendReentryParams `yaml:"trend_reentry"`
	Momentum     MomentumParams     `yaml:"momentum"`
	MACross      MACrossParams      `yaml:"ma_cross"`
}

// DefaultParams returns Params with every `default` tag applied.
func DefaultParams() Params {
	var p Params
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("strategy: default params: %v", err))
	}
	return p
}

// Registry holds detectors in evaluation order.
type Registry struct {
	detectors []Detector
}

// NewRegistry builds the standard detector set for one kline interval:
// Breakout, RSI+MA+Volume, EMA/VWAP/StochRSI, then MA Cross+RSI when enabled.
func NewRegistry(p Params, interval string) *Registry {
	r := &Registry{}
	r.Register(NewBreakout(p.Breakout, p.Exits, interval))
	r.Register(NewTrendReentry(p.TrendReentry, p.Exits, interval))
	r.Register(NewMomentum(p.Momentum, p.Exits, interval))
	if p.MACross.Enabled {
		r.Register(NewMACross(p.MACross, p.Exits, interval))
	}
	return r
}

// Register appends a detector to the evaluation order.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Detectors returns the detectors in evaluation order.
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// Lookup returns the detector with the given name.
func (r *Registry) Lookup(name string) (Detector, bool) {
	for _, d := range r.detectors {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// MaxLookback returns the longest window any registered detector needs.
func (r *Registry) MaxLookback() int {
	n := 0
	for _, d := range r.detectors {
		n = max(n, d.Lookback())
	}
	return n
}

// Evaluate runs every detector on w in registration order. Detectors whose
// lookback exceeds the window are reported in skipped and not run.
func (r *Registry) Evaluate(symbol string, w model.Window) (signals []model.Signal, skipped []string) {
	for _, d := range r.detectors {
		if w.Len() < d.Lookback() {
			skipped = append(skipped, d.Name())
			continue
		}
		if sig := d.Detect(symbol, w); sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals, skipped
}

// newSignal prices the exits for a fired side and renders the message.
func newSignal(symbol, strategy, interval string, side model.Side, last model.Bar, exits Exits) *model.Signal {
	entry := last.Close
	sl, tp := exits.Levels(side, entry)
	sig := &model.Signal{
		Symbol:     symbol,
		Side:       side,
		Strategy:   strategy,
		Interval:   interval,
		Entry:      entry,
		StopLoss:   sl,
		TakeProfit: tp,
		TS:         last.TS.UTC(),
	}
	sig.Message = FormatSignal(*sig)
	return sig
}

// FormatSignal renders the Markdown announcement for a signal.
func FormatSignal(sig model.Signal) string {
	label := sig.Strategy
	if sig.Interval != "" {
		label += " (" + sig.Interval + ")"
	}
	return fmt.Sprintf("*%s* (%s)\nStrategy: %s → *%s*\nEntry: `%s`  SL: `%s`  TP: `%s`",
		sig.Symbol,
		sig.TS.Format("2006-01-02 15:04")+" UTC",
		label,
		sig.Side,
		model.FormatPrice(sig.Entry),
		model.FormatPrice(sig.StopLoss),
		model.FormatPrice(sig.TakeProfit),
	)
}

var (
	_ Detector = (*Breakout)(nil)
	_ Detector = (*TrendReentry)(nil)
	_ Detector = (*Momentum)(nil)
	_ Detector = (*MACross)(nil)
)
