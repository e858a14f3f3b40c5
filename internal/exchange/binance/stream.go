package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"trading-signals/internal/model"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443/ws/!miniTicker@arr"
	defaultMaxAge    = 10 * time.Second
	readTimeout      = 30 * time.Second
	pingInterval     = 15 * time.Second
)

// miniTicker is one element of the !miniTicker@arr payload.
// EventType must stay: without an exact "e" field, encoding/json matches
// the "e" key case-insensitively against "E".
type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

type quote struct {
	price float64
	at    time.Time
}

// PriceStream keeps the last price of every symbol from the all-market
// mini-ticker stream. Price serves cached quotes younger than MaxAge and
// falls back to REST otherwise.
type PriceStream struct {
	url      string
	maxAge   time.Duration
	fallback model.PriceSource
	log      zerolog.Logger

	mu     sync.RWMutex
	quotes map[string]quote

	now func() time.Time

	// Optional hooks
	OnConnState func(connected bool)
	OnReconnect func()
	OnFallback  func()
}

// NewPriceStream creates a stream-backed price source. url "" uses the
// Binance all-market mini-ticker stream; maxAge <= 0 means 10s.
func NewPriceStream(url string, maxAge time.Duration, fallback model.PriceSource, log zerolog.Logger) *PriceStream {
	if url == "" {
		url = defaultStreamURL
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &PriceStream{
		url:      url,
		maxAge:   maxAge,
		fallback: fallback,
		log:      log.With().Str("component", "price_stream").Logger(),
		quotes:   make(map[string]quote),
		now:      time.Now,
	}
}

// Price returns the cached quote for symbol when fresh, otherwise asks the
// fallback source.
func (s *PriceStream) Price(ctx context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if ok && s.now().Sub(q.at) <= s.maxAge {
		return q.price, nil
	}

	if s.OnFallback != nil {
		s.OnFallback()
	}
	if s.fallback == nil {
		return 0, fmt.Errorf("price stream %s: %w", symbol, model.ErrNoPrice)
	}
	return s.fallback.Price(ctx, symbol)
}

// Run connects and keeps the cache updated, reconnecting with backoff.
// Blocks until ctx is cancelled.
func (s *PriceStream) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		connected, err := s.consume(ctx)
		s.setConnected(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = time.Second
		}
		s.log.Warn().Err(err).Dur("backoff", backoff).Msg("price stream disconnected, retrying")
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

// consume reads one connection until it fails. connected reports whether
// the dial succeeded.
func (s *PriceStream) consume(ctx context.Context) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	s.setConnected(true)
	s.log.Info().Str("url", s.url).Msg("price stream connected")

	conn.SetReadLimit(4 << 20)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// Unblock ReadMessage on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.log.Warn().Err(err).Msg("price stream ping failed")
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-stop:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err := s.apply(message); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode mini-ticker message")
		}
	}
}

// apply stores every quote in one mini-ticker array payload.
func (s *PriceStream) apply(message []byte) error {
	var tickers []miniTicker
	if err := json.Unmarshal(message, &tickers); err != nil {
		return err
	}
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickers {
		px, err := strconv.ParseFloat(t.Close, 64)
		if err != nil || t.Symbol == "" {
			continue
		}
		s.quotes[t.Symbol] = quote{price: px, at: at}
	}
	return nil
}

func (s *PriceStream) setConnected(v bool) {
	if s.OnConnState != nil {
		s.OnConnState(v)
	}
}

var _ model.PriceSource = (*PriceStream)(nil)
