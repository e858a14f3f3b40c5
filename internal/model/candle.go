package model

import "time"

// Bar is one OHLCV sample for a fixed kline interval.
type Bar struct {
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // base-asset volume, >= 0
}

// Window is an ordered run of bars, oldest first.
type Window []Bar

// Len returns the number of bars in the window.
func (w Window) Len() int { return len(w) }

// Last returns the most recent bar. The window must not be empty.
func (w Window) Last() Bar { return w[len(w)-1] }

// Closes returns the close series.
func (w Window) Closes() []float64 {
	out := make([]float64, len(w))
	for i, b := range w {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high series.
func (w Window) Highs() []float64 {
	out := make([]float64, len(w))
	for i, b := range w {
		out[i] = b.High
	}
	return out
}

// Lows returns the low series.
func (w Window) Lows() []float64 {
	out := make([]float64, len(w))
	for i, b := range w {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volume series.
func (w Window) Volumes() []float64 {
	out := make([]float64, len(w))
	for i, b := range w {
		out[i] = b.Volume
	}
	return out
}
