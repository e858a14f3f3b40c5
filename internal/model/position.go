package model

import (
	"strconv"
	"time"
)

// Side is the direction of a signal or position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Status is the lifecycle state of a position.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusClosedTP Status = "CLOSED_TP"
	StatusClosedSL Status = "CLOSED_SL"
)

// Closed reports whether s is a terminal status.
func (s Status) Closed() bool {
	return s == StatusClosedTP || s == StatusClosedSL
}

// Position is a tracked signal awaiting a take-profit or stop-loss exit.
// Side, Entry, StopLoss and TakeProfit are fixed when the position is opened.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strategy   string    `json:"strategy"`
	Interval   string    `json:"interval,omitempty"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	OpenedAt   time.Time `json:"opened_at"`
	Status     Status    `json:"status"`
	ClosedAt   time.Time `json:"closed_at,omitempty"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
}

// NewPosition opens a position from a fired signal.
func NewPosition(id string, sig Signal, openedAt time.Time) Position {
	return Position{
		ID:         id,
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Strategy:   sig.Strategy,
		Interval:   sig.Interval,
		Entry:      sig.Entry,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		OpenedAt:   openedAt.UTC(),
		Status:     StatusOpen,
	}
}

// Key identifies a position by symbol, strategy and open time.
func (p *Position) Key() string {
	return p.Symbol + "|" + p.Strategy + "|" + strconv.FormatInt(p.OpenedAt.UnixNano(), 10)
}

// PnLPct returns the signed percent move from entry to price in the
// position's favour.
func (p *Position) PnLPct(price float64) float64 {
	if p.Entry == 0 {
		return 0
	}
	move := (price - p.Entry) / p.Entry * 100
	if p.Side == Short {
		return -move
	}
	return move
}
