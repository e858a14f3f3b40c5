// Package daily keeps the per-day trade counters and emits the daily
// summary.
package daily

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-signals/internal/model"
	"trading-signals/internal/notification"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Opened    int     `json:"opened"`
	ClosedTP  int     `json:"closed_tp"`
	ClosedSL  int     `json:"closed_sl"`
	NetPnLPct float64 `json:"net_pnl_pct"` // sum of closed positions' PnL percent
	StillOpen int     `json:"still_open"`  // filled in at summary time
}

// Closed returns TP + SL closes.
func (s Snapshot) Closed() int { return s.ClosedTP + s.ClosedSL }

// WinRate returns TP closes as a percent of all closes, 0 with no closes.
func (s Snapshot) WinRate() float64 {
	if s.Closed() == 0 {
		return 0
	}
	return float64(s.ClosedTP) / float64(s.Closed()) * 100
}

// Counters counts opens and closes since the last summary. It is safe for
// concurrent use; only the Aggregator resets it.
type Counters struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordOpen counts one opened position.
func (c *Counters) RecordOpen() {
	c.mu.Lock()
	c.snap.Opened++
	c.mu.Unlock()
}

// RecordClose counts one closed position and its PnL. Non-terminal statuses
// are ignored.
func (c *Counters) RecordClose(status model.Status, pnlPct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch status {
	case model.StatusClosedTP:
		c.snap.ClosedTP++
	case model.StatusClosedSL:
		c.snap.ClosedSL++
	default:
		return
	}
	c.snap.NetPnLPct += pnlPct
}

// Snapshot returns the current counts without resetting them.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// takeAndReset returns the counts and zeroes them in one step.
func (c *Counters) takeAndReset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	c.snap = Snapshot{}
	return s
}

// Broadcaster delivers a text to every subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind, text string) error
}

// Aggregator owns the Counters and emits the daily summary.
type Aggregator struct {
	counters *Counters
	out      Broadcaster
	log      zerolog.Logger
}

// NewAggregator creates an aggregator over counters.
func NewAggregator(counters *Counters, out Broadcaster, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		counters: counters,
		out:      out,
		log:      log.With().Str("component", "daily").Logger(),
	}
}

// Counters returns the counters the lifecycle manager records into.
func (a *Aggregator) Counters() *Counters { return a.counters }

// Summarize snapshots and resets the counters, then sends the summary for
// day. The counters are reset even when delivery fails, so the next summary
// never double-counts; the returned snapshot still carries the numbers.
func (a *Aggregator) Summarize(ctx context.Context, day time.Time, stillOpen int) (Snapshot, error) {
	snap := a.counters.takeAndReset()
	snap.StillOpen = stillOpen

	a.log.Info().
		Int("opened", snap.Opened).
		Int("closed_tp", snap.ClosedTP).
		Int("closed_sl", snap.ClosedSL).
		Int("still_open", snap.StillOpen).
		Msg("daily summary")

	if err := a.out.Broadcast(ctx, notification.KindSummary, FormatSummary(snap, day)); err != nil {
		return snap, fmt.Errorf("daily: deliver summary: %w", err)
	}
	return snap, nil
}

// FormatSummary renders the Markdown daily summary.
func FormatSummary(s Snapshot, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily summary* (%s)\n", day.Format("2006-01-02"))
	fmt.Fprintf(&b, "Signals opened: %d\n", s.Opened)
	fmt.Fprintf(&b, "Closed TP: %d  SL: %d\n", s.ClosedTP, s.ClosedSL)
	fmt.Fprintf(&b, "Still open: %d\n", s.StillOpen)
	if s.Closed() > 0 {
		fmt.Fprintf(&b, "Win rate: %.1f%%\n", s.WinRate())
		fmt.Fprintf(&b, "Net PnL: %s", model.FormatPct(s.NetPnLPct))
	} else {
		b.WriteString("No positions closed")
	}
	return b.String()
}
