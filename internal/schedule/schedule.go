// Package schedule drives the scanner's two triggers: a fixed-interval scan
// loop and a once-per-day summary at a wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Daily is a time of day in a location, e.g. 00:00 UTC.
type Daily struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// ParseDaily parses "HH:MM" and an IANA zone name ("" means UTC).
func ParseDaily(clock, tz string) (Daily, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return Daily{}, fmt.Errorf("schedule: invalid clock %q, want HH:MM", clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Daily{}, fmt.Errorf("schedule: invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Daily{}, fmt.Errorf("schedule: invalid minute in %q", clock)
	}

	loc := time.UTC
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return Daily{}, fmt.Errorf("schedule: load zone %q: %w", tz, err)
		}
	}
	return Daily{Hour: h, Minute: m, Loc: loc}, nil
}

func (d Daily) location() *time.Location {
	if d.Loc == nil {
		return time.UTC
	}
	return d.Loc
}

// Next returns the first occurrence of d strictly after t.
func (d Daily) Next(t time.Time) time.Time {
	loc := d.location()
	lt := t.In(loc)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(lt) {
		next = time.Date(lt.Year(), lt.Month(), lt.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

func (d Daily) String() string {
	return fmt.Sprintf("%02d:%02d %s", d.Hour, d.Minute, d.location())
}

// Every calls fn once immediately and then every interval until ctx is
// cancelled. Ticks that arrive while fn is running are coalesced: at most
// one run is queued behind the current one.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		panic("schedule: non-positive interval")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// At calls fn at every occurrence of d until ctx is cancelled. fn receives
// the time it was scheduled for.
func At(ctx context.Context, d Daily, fn func(ctx context.Context, at time.Time)) {
	runDaily(ctx, d, fn, time.Now, time.After)
}

func runDaily(ctx context.Context, d Daily, fn func(context.Context, time.Time),
	now func() time.Time, after func(time.Duration) <-chan time.Time) {
	for {
		next := d.Next(now())
		select {
		case <-ctx.Done():
			return
		case <-after(next.Sub(now())):
			fn(ctx, next)
		}
	}
}

// FormatUntil renders the wait until the next trigger, e.g. "3h25m".
func FormatUntil(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
