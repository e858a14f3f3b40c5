package portfolio

import (
	"fmt"

	"trading-signals/internal/model"
)

// Exit is the outcome of checking a position against observed prices.
type Exit struct {
	Status model.Status
	Price  float64 // the observed price that triggered the exit
}

// Closed reports whether the exit closes the position.
func (e Exit) Closed() bool { return e.Status.Closed() }

// Evaluate checks p against one or more prices observed since the last
// check (a live quote, or a bar's high and low).
//
//	LONG:  hit TP iff price >= tp, hit SL iff price <= sl
//	SHORT: hit TP iff price <= tp, hit SL iff price >= sl
//
// When both are hit in the same evaluation TP wins. The exit price is the
// first observed price that reached the winning level.
func Evaluate(p model.Position, prices ...float64) Exit {
	tpAt, slAt := -1, -1
	for i, price := range prices {
		if tpAt < 0 && hitTP(p, price) {
			tpAt = i
		}
		if slAt < 0 && hitSL(p, price) {
			slAt = i
		}
	}
	switch {
	case tpAt >= 0:
		return Exit{Status: model.StatusClosedTP, Price: prices[tpAt]}
	case slAt >= 0:
		return Exit{Status: model.StatusClosedSL, Price: prices[slAt]}
	}
	return Exit{Status: model.StatusOpen}
}

func hitTP(p model.Position, price float64) bool {
	if p.Side == model.Short {
		return price <= p.TakeProfit
	}
	return price >= p.TakeProfit
}

func hitSL(p model.Position, price float64) bool {
	if p.Side == model.Short {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

// FormatClose renders the Markdown close notification.
func FormatClose(p model.Position) string {
	outcome := "✅ TP"
	if p.Status == model.StatusClosedSL {
		outcome = "❌ SL"
	}
	label := p.Strategy
	if p.Interval != "" {
		label += " (" + p.Interval + ")"
	}
	return fmt.Sprintf("*%s* closed %s\nStrategy: %s → *%s*\nEntry: `%s`  Exit: `%s`  PnL: `%s`",
		p.Symbol,
		outcome,
		label,
		p.Side,
		model.FormatPrice(p.Entry),
		model.FormatPrice(p.ExitPrice),
		model.FormatPct(p.PnLPct(p.ExitPrice)),
	)
}
