// Package binance reads public spot market data from Binance: the
// volume-ranked symbol universe, klines and live prices.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trading-signals/internal/model"
)

const defaultBaseURL = "https://api.binance.com"

// Config configures the REST client.
type Config struct {
	BaseURL    string        // REST root, "" for api.binance.com
	QuoteAsset string        // ranking filter suffix, e.g. "USDT"
	RateLimit  float64       // requests per second; burst is twice that
	Timeout    time.Duration // per-request HTTP timeout
}

// Client wraps the spot market data endpoints the scanner needs.
type Client struct {
	baseURL    string
	quote      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a REST client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		quote:      strings.ToUpper(cfg.QuoteAsset),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), int(2*cfg.RateLimit)+1),
		log:        log.With().Str("component", "binance").Logger(),
	}
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// TopSymbols returns up to limit symbols quoted in the configured asset,
// ranked by 24h quote volume, most liquid first.
func (c *Client) TopSymbols(ctx context.Context, limit int) ([]string, error) {
	body, err := c.do(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	var tickers []ticker24h
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("binance decode 24hr tickers: %w", err)
	}

	type ranked struct {
		symbol string
		volume float64
	}
	candidates := make([]ranked, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, c.quote) {
			continue
		}
		vol, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{t.Symbol, vol})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].volume > candidates[j].volume
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, r := range candidates {
		out[i] = r.symbol
	}
	return out, nil
}

// Bars returns the most recent limit klines for symbol, oldest first. The
// last bar is the one currently forming.
func (c *Client) Bars(ctx context.Context, symbol, interval string, limit int) (model.Window, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.do(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, err
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance decode klines: %w", err)
	}

	w := make(model.Window, 0, len(rows))
	for i, row := range rows {
		bar, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance kline %d of %s: %w", i, symbol, err)
		}
		w = append(w, bar)
	}
	return w, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(row []json.RawMessage) (model.Bar, error) {
	if len(row) < 6 {
		return model.Bar{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Bar{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.Bar{
		TS:     time.UnixMilli(openTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// Price returns the last traded price of symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.do(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("binance decode price: %w", err)
	}
	if resp.Price == "" {
		return 0, fmt.Errorf("binance price %s: %w", symbol, model.ErrNoPrice)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance parse price %s: %w", symbol, err)
	}
	return price, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("binance rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if params != nil {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance %s: %w", path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("binance %s read body: %w", path, err)
	}
	if res.StatusCode >= 300 {
		c.log.Debug().Str("path", path).Int("status", res.StatusCode).Msg("request failed")
		return nil, fmt.Errorf("binance %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

var (
	_ model.SymbolSource = (*Client)(nil)
	_ model.BarSource    = (*Client)(nil)
	_ model.PriceSource  = (*Client)(nil)
)
