package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trading-signals/internal/model"
)

func newRESTServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"ETHUSDT","quoteVolume":"500.5"},
			{"symbol":"BTCUSDT","quoteVolume":"900"},
			{"symbol":"ETHBTC","quoteVolume":"99999"},
			{"symbol":"SOLUSDT","quoteVolume":"700"},
			{"symbol":"BADUSDT","quoteVolume":"n/a"}
		]`))
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "15m" || q.Get("limit") != "2" {
			t.Errorf("query=%s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			[1714521600000,"100.0","101.5","99.5","101.0","12.5",1714522499999,"1262.5",10,"6","600","0"],
			[1714522500000,"101.0","103.0","100.5","102.5","20",1714523399999,"2050",12,"9","900","0"]
		]`))
	})
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "NOPEUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_TopSymbols(t *testing.T) {
	srv := newRESTServer(t)
	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 100}, zerolog.Nop())

	got, err := c.TopSymbols(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"BTCUSDT", "SOLUSDT"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	all, _ := c.TopSymbols(context.Background(), 100)
	if want := []string{"BTCUSDT", "SOLUSDT", "ETHUSDT"}; !reflect.DeepEqual(all, want) {
		t.Errorf("got %v, want %v", all, want)
	}
}

func TestClient_Bars(t *testing.T) {
	srv := newRESTServer(t)
	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 100}, zerolog.Nop())

	w, err := c.Bars(context.Background(), "BTCUSDT", "15m", 2)
	if err != nil {
		t.Fatal(err)
	}
	if w.Len() != 2 {
		t.Fatalf("len=%d, want 2", w.Len())
	}
	want := model.Bar{
		TS:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Open: 100, High: 101.5, Low: 99.5, Close: 101, Volume: 12.5,
	}
	if w[0] != want {
		t.Errorf("bar0=%+v, want %+v", w[0], want)
	}
	if w.Last().Close != 102.5 || !w.Last().TS.After(w[0].TS) {
		t.Errorf("last=%+v", w.Last())
	}
}

func TestParseKline_Short(t *testing.T) {
	if _, err := parseKline(nil); err == nil {
		t.Error("expected error for empty row")
	}
}

func TestClient_Price(t *testing.T) {
	srv := newRESTServer(t)
	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 100}, zerolog.Nop())

	p, err := c.Price(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if p != 64123.45 {
		t.Errorf("price=%v", p)
	}

	_, err = c.Price(context.Background(), "NOPEUSDT")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("err=%v, want status 400", err)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := newRESTServer(t)
	c := NewClient(Config{BaseURL: srv.URL, RateLimit: 0.001}, zerolog.Nop())

	// Burst is 1: the first call passes, the second must wait ~1000s.
	if _, err := c.Price(context.Background(), "BTCUSDT"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Price(ctx, "BTCUSDT"); err == nil {
		t.Error("expected rate limiter to give up on the context deadline")
	}
}

type stubPrices struct {
	calls atomic.Int32
	price float64
	err   error
}

func (s *stubPrices) Price(ctx context.Context, symbol string) (float64, error) {
	s.calls.Add(1)
	return s.price, s.err
}

func TestPriceStream_CacheAndFallback(t *testing.T) {
	fb := &stubPrices{price: 42}
	s := NewPriceStream("ws://unused", 10*time.Second, fb, zerolog.Nop())
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	if err := s.apply([]byte(`[{"e":"24hrMiniTicker","E":1,"s":"BTCUSDT","c":"64000.5"},{"s":"ETHUSDT","c":"bad"}]`)); err != nil {
		t.Fatal(err)
	}

	p, err := s.Price(context.Background(), "BTCUSDT")
	if err != nil || p != 64000.5 || fb.calls.Load() != 0 {
		t.Errorf("fresh quote: p=%v err=%v fallbacks=%d", p, err, fb.calls.Load())
	}

	// Unknown symbol goes to REST.
	if p, _ := s.Price(context.Background(), "ETHUSDT"); p != 42 || fb.calls.Load() != 1 {
		t.Errorf("fallback: p=%v calls=%d", p, fb.calls.Load())
	}

	// Stale quote goes to REST.
	clock = clock.Add(11 * time.Second)
	if p, _ := s.Price(context.Background(), "BTCUSDT"); p != 42 || fb.calls.Load() != 2 {
		t.Errorf("stale: p=%v calls=%d", p, fb.calls.Load())
	}
}

func TestPriceStream_ApplyFullMiniTicker(t *testing.T) {
	s := NewPriceStream("ws://unused", time.Minute, nil, zerolog.Nop())
	payload := `[{"e":"24hrMiniTicker","E":1672515782136,"s":"BTCUSDT","c":"64000.5","o":"63000","h":"64500","l":"62800","v":"1200.5","q":"76000000"},` +
		`{"e":"24hrMiniTicker","E":1672515782136,"s":"ETHUSDT","c":"3100.25","o":"3000","h":"3150","l":"2990","v":"8000","q":"24000000"}]`
	if err := s.apply([]byte(payload)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for sym, want := range map[string]float64{"BTCUSDT": 64000.5, "ETHUSDT": 3100.25} {
		if p, err := s.Price(context.Background(), sym); err != nil || p != want {
			t.Errorf("%s: p=%v err=%v, want %v", sym, p, err, want)
		}
	}
}

func TestPriceStream_NoFallback(t *testing.T) {
	s := NewPriceStream("ws://unused", time.Second, nil, zerolog.Nop())
	if _, err := s.Price(context.Background(), "BTCUSDT"); !errors.Is(err, model.ErrNoPrice) {
		t.Errorf("err=%v, want ErrNoPrice", err)
	}
}

func TestPriceStream_Run(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"s":"BTCUSDT","c":"65000"}]`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	fb := &stubPrices{err: errors.New("rest down")}
	s := NewPriceStream("ws"+strings.TrimPrefix(srv.URL, "http"), time.Minute, fb, zerolog.Nop())
	var connected atomic.Bool
	s.OnConnState = func(v bool) { connected.Store(v) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if p, err := s.Price(context.Background(), "BTCUSDT"); err == nil && p == 65000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("quote never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !connected.Load() {
		t.Error("OnConnState(true) not called")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	if connected.Load() {
		t.Error("still marked connected after shutdown")
	}
}
