package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-signals/internal/model"
	"trading-signals/internal/notification"
)

var _ notification.SubscriberStore = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "nested", "signals.db")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePositions() []model.Position {
	opened := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	return []model.Position{
		{
			ID: "b", Symbol: "ETHUSDT", Side: model.Short, Strategy: "RSI+MA+Volume", Interval: "15m",
			Entry: 3000, StopLoss: 3030, TakeProfit: 2925, OpenedAt: opened, Status: model.StatusOpen,
		},
		{
			ID: "a", Symbol: "BTCUSDT", Side: model.Long, Strategy: "Breakout", Interval: "15m",
			Entry: 100, StopLoss: 99, TakeProfit: 102.5, OpenedAt: opened.Add(time.Minute), Status: model.StatusOpen,
		},
	}
}

func TestPositions_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.LoadPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty load=%v, want empty slice", empty)
	}

	want := samplePositions()
	if err := s.SavePositions(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, want)
	}
}

func TestPositions_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	all := samplePositions()
	if err := s.SavePositions(ctx, all); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePositions(ctx, all[1:]); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %+v, want only position a", got)
	}

	if err := s.SavePositions(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.LoadPositions(ctx); len(got) != 0 {
		t.Errorf("got %d positions after saving empty set", len(got))
	}
}

func TestJournal_RecentClosed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range samplePositions() {
		p.Status = model.StatusClosedTP
		p.ExitPrice = p.TakeProfit
		p.ClosedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.RecordClosed(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.RecentClosed(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	// Newest first.
	if recs[0].ID != "a" || recs[1].ID != "b" {
		t.Errorf("order=%s,%s", recs[0].ID, recs[1].ID)
	}
	if recs[0].PnLPct < 2.49 || recs[0].PnLPct > 2.51 {
		t.Errorf("pnl=%v, want 2.5", recs[0].PnLPct)
	}
	if recs[1].Side != model.Short || recs[1].Status != model.StatusClosedTP {
		t.Errorf("record=%+v", recs[1])
	}

	if recs, _ := s.RecentClosed(ctx, 1); len(recs) != 1 {
		t.Errorf("limit ignored: %d", len(recs))
	}
}

func TestSubscribers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"100", "200", "100"} {
		if err := s.AddSubscriber(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RemoveSubscriber(ctx, "100"); err != nil {
		t.Fatal(err)
	}
	ids, err := s.LoadSubscribers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"200"}) {
		t.Errorf("ids=%v", ids)
	}
}
