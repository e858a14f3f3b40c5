package indicator

import "trading-signals/internal/model"

// VWAP returns the cumulative volume-weighted average close over the whole
// window: Σ(close×volume) / Σ(volume). It is not reset per session. ok is
// false when the window is empty or carries no volume.
func VWAP(w model.Window) (vwap float64, ok bool) {
	pv, vol := 0.0, 0.0
	for _, b := range w {
		pv += b.Close * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		return 0, false
	}
	return pv / vol, true
}
