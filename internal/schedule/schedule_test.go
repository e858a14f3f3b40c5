package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseDaily(t *testing.T) {
	d, err := ParseDaily("07:30", "")
	if err != nil {
		t.Fatal(err)
	}
	if d.Hour != 7 || d.Minute != 30 || d.Loc != time.UTC {
		t.Errorf("got %+v", d)
	}
	if d.String() != "07:30 UTC" {
		t.Errorf("String()=%q", d.String())
	}

	for _, bad := range []string{"", "7", "24:00", "12:60", "aa:10", "10:-1"} {
		if _, err := ParseDaily(bad, "UTC"); err == nil {
			t.Errorf("ParseDaily(%q) should fail", bad)
		}
	}
	if _, err := ParseDaily("00:00", "Not/AZone"); err == nil {
		t.Error("unknown zone should fail")
	}
}

func TestDaily_Next(t *testing.T) {
	d := Daily{Hour: 0, Minute: 0}
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{
			time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			// Exactly on the trigger moves to the next day.
			time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		if got := d.Next(tt.now); !got.Equal(tt.want) {
			t.Errorf("Next(%v)=%v, want %v", tt.now, got, tt.want)
		}
	}

	zone := time.FixedZone("X", 2*3600)
	dz := Daily{Hour: 9, Minute: 15, Loc: zone}
	// 06:00 UTC is 08:00 local, trigger later the same day.
	got := dz.Next(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC))
	if want := time.Date(2024, 5, 1, 7, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("zoned Next=%v, want %v", got, want)
	}
}

func TestEvery(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Every(ctx, 5*time.Millisecond, func(context.Context) {
			if calls.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not stop")
	}
	if n := calls.Load(); n < 3 {
		t.Errorf("calls=%d, want >= 3", n)
	}
}

func TestRunDaily(t *testing.T) {
	clock := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	fire := make(chan time.Time)
	var waits []time.Duration
	after := func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		return fire
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []time.Time
	done := make(chan struct{})
	go func() {
		runDaily(ctx, Daily{}, func(_ context.Context, at time.Time) {
			got = append(got, at)
			clock = at.Add(time.Second)
			if len(got) == 2 {
				cancel()
			}
		}, now, after)
		close(done)
	}()

	fire <- time.Time{}
	fire <- time.Time{}
	<-done

	if len(got) != 2 {
		t.Fatalf("fired %d times", len(got))
	}
	if want := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC); !got[0].Equal(want) {
		t.Errorf("first=%v, want %v", got[0], want)
	}
	if want := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC); !got[1].Equal(want) {
		t.Errorf("second=%v, want %v", got[1], want)
	}
	if waits[0] != time.Hour {
		t.Errorf("first wait=%v, want 1h", waits[0])
	}
}

func TestFormatUntil(t *testing.T) {
	if got := FormatUntil(3*time.Hour + 25*time.Minute); got != "3h25m" {
		t.Errorf("got %q", got)
	}
	if got := FormatUntil(-time.Minute); got != "0m" {
		t.Errorf("got %q", got)
	}
}
