package model

import "time"

// Signal is a fired strategy recommendation. It is never modified after a
// detector returns it.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strategy   string    `json:"strategy"`
	Interval   string    `json:"interval,omitempty"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Message    string    `json:"message"`
	TS         time.Time `json:"ts"` // open time of the bar that fired
}
