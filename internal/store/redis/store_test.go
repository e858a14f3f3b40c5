package redis

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
)

func samplePositions() []model.Position {
	opened := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []model.Position{
		{ID: "a", Symbol: "BTCUSDT", Side: model.Long, Strategy: "Breakout", Interval: "15m",
			Entry: 100, StopLoss: 99, TakeProfit: 102.5, OpenedAt: opened, Status: model.StatusOpen},
		{ID: "b", Symbol: "ETHUSDT", Side: model.Short, Strategy: "RSI+MA+Volume",
			Entry: 3000, StopLoss: 3030, TakeProfit: 2925, OpenedAt: opened.Add(time.Minute), Status: model.StatusOpen},
	}
}

func TestSnapshot_Codec(t *testing.T) {
	want := samplePositions()
	data, err := encodeSnapshot(want, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}

	empty, err := decodeSnapshot(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("missing key: got %v, %v", empty, err)
	}

	if _, err := decodeSnapshot([]byte(`{"version":99,"positions":[]}`)); err == nil {
		t.Error("expected version error")
	}
}

func TestStore_BreakerTripsOnUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	prom := metrics.NewMetrics(prometheus.NewRegistry())
	s := newStore(client, Config{MaxFailures: 2, CoolDown: time.Hour}, prom, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.SavePositions(ctx, samplePositions()); err == nil {
			t.Fatal("expected connection error")
		}
	}
	if s.Breaker().CurrentState() != StateOpen {
		t.Fatalf("breaker=%v, want open", s.Breaker().CurrentState())
	}
	if _, err := s.LoadPositions(ctx); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("load err=%v, want ErrCircuitOpen", err)
	}
}

// TestStore_RoundTrip runs against a live server when REDIS_ADDR is set.
func TestStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	prom := metrics.NewMetrics(prometheus.NewRegistry())
	key := "signals:test:" + time.Now().Format("150405.000000")
	s, err := New(Config{Addr: addr, Key: key}, prom, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	defer s.Client().Del(ctx, key)

	if got, err := s.LoadPositions(ctx); err != nil || len(got) != 0 {
		t.Fatalf("fresh key: %v, %v", got, err)
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
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}
