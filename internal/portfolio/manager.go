package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trading-signals/internal/daily"
	"trading-signals/internal/logger"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
	"trading-signals/internal/notification"
)

// Config tunes the Manager.
type Config struct {
	// SuppressDuplicates skips a signal when a position with the same
	// symbol, strategy and side is already open.
	SuppressDuplicates bool
	// PriceTimeout bounds each live price lookup.
	PriceTimeout time.Duration
	// StoreTimeout bounds each persistence call.
	StoreTimeout time.Duration
	// Workers bounds concurrent price lookups.
	Workers int
}

// Manager owns the open-position book. Open, Reconcile and Persist are not
// safe to call concurrently with each other; the scanner serializes them.
type Manager struct {
	cfg      Config
	book     *Book
	prices   model.PriceSource
	store    model.PositionStore
	journal  model.ClosedJournal
	counters *daily.Counters
	out      daily.Broadcaster
	prom     *metrics.Metrics
	log      zerolog.Logger

	dirty bool

	// overridable in tests
	now   func() time.Time
	newID func() string
}

// NewManager creates a Manager. journal may be nil.
func NewManager(cfg Config, prices model.PriceSource, store model.PositionStore, journal model.ClosedJournal,
	counters *daily.Counters, out daily.Broadcaster, prom *metrics.Metrics, log zerolog.Logger) *Manager {
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 10 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Manager{
		cfg:      cfg,
		book:     NewBook(),
		prices:   prices,
		store:    store,
		journal:  journal,
		counters: counters,
		out:      out,
		prom:     prom,
		log:      log.With().Str("component", "portfolio").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Book returns the open-position book.
func (m *Manager) Book() *Book { return m.book }

// Restore loads the persisted open set into the book.
func (m *Manager) Restore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	positions, err := m.store.LoadPositions(ctx)
	if err != nil {
		m.prom.StoreErrors.WithLabelValues("load").Inc()
		return fmt.Errorf("portfolio: restore: %w", err)
	}
	n := m.book.Replace(positions)
	m.prom.OpenPositions.Set(float64(n))
	m.log.Info().Int("open", n).Msg("restored open positions")
	return nil
}

// Open turns a fired signal into an open position and announces it. It
// reports false when the signal was not opened.
func (m *Manager) Open(ctx context.Context, sig model.Signal) (model.Position, bool) {
	log := logger.FromContext(ctx, m.log).With().
		Str("symbol", sig.Symbol).
		Str("strategy", sig.Strategy).
		Str("side", string(sig.Side)).
		Logger()

	if m.cfg.SuppressDuplicates && m.book.HasOpen(sig.Symbol, sig.Strategy, sig.Side) {
		log.Debug().Msg("duplicate signal suppressed")
		return model.Position{}, false
	}

	p := model.NewPosition(m.newID(), sig, m.now())
	if err := m.book.Add(p); err != nil {
		log.Warn().Err(err).Msg("position not opened")
		return model.Position{}, false
	}
	m.dirty = true
	m.counters.RecordOpen()
	m.prom.SignalsTotal.WithLabelValues(sig.Strategy, string(sig.Side)).Inc()
	m.prom.OpenPositions.Set(float64(m.book.Len()))

	log.Info().
		Str("id", p.ID).
		Float64("entry", p.Entry).
		Float64("sl", p.StopLoss).
		Float64("tp", p.TakeProfit).
		Msg("position opened")

	// Delivery failures are logged by the broadcaster.
	_ = m.out.Broadcast(ctx, notification.KindSignal, sig.Message)
	return p, true
}

// Reconcile re-checks every open position against its live price and closes
// the ones that reached TP or SL. A position whose price cannot be fetched
// stays open until the next call. It returns the closed positions.
func (m *Manager) Reconcile(ctx context.Context) []model.Position {
	open := m.book.Positions()
	if len(open) == 0 {
		return nil
	}
	log := logger.FromContext(ctx, m.log)

	prices := m.fetchPrices(ctx, open)

	var closed []model.Position
	for _, p := range open {
		price, ok := prices[p.Symbol]
		if !ok {
			continue
		}
		exit := Evaluate(p, price)
		if !exit.Closed() {
			continue
		}
		p.Status = exit.Status
		p.ExitPrice = exit.Price
		p.ClosedAt = m.now().UTC()
		m.close(ctx, log, p)
		closed = append(closed, p)
	}
	return closed
}

// fetchPrices looks up one price per distinct symbol. Failed lookups are
// logged and left out of the result.
func (m *Manager) fetchPrices(ctx context.Context, open []model.Position) map[string]float64 {
	symbols := make([]string, 0, len(open))
	seen := make(map[string]struct{}, len(open))
	for _, p := range open {
		if _, ok := seen[p.Symbol]; !ok {
			seen[p.Symbol] = struct{}{}
			symbols = append(symbols, p.Symbol)
		}
	}

	results := make([]float64, len(symbols))
	found := make([]bool, len(symbols))

	var g errgroup.Group
	g.SetLimit(m.cfg.Workers)
	for i, sym := range symbols {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, m.cfg.PriceTimeout)
			defer cancel()
			price, err := m.prices.Price(pctx, sym)
			if err != nil {
				m.prom.FetchErrors.WithLabelValues("price").Inc()
				log := logger.FromContext(ctx, m.log)
				log.Warn().
					Err(err).
					Str("symbol", sym).
					Str("stage", "price").
					Msg("price unavailable, position stays open")
				return nil
			}
			results[i], found[i] = price, true
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		if found[i] {
			out[sym] = results[i]
		}
	}
	return out
}

func (m *Manager) close(ctx context.Context, log zerolog.Logger, p model.Position) {
	m.book.Remove(p.ID)
	m.dirty = true

	pnl := p.PnLPct(p.ExitPrice)
	m.counters.RecordClose(p.Status, pnl)
	m.prom.ClosedTotal.WithLabelValues(string(p.Status)).Inc()
	m.prom.OpenPositions.Set(float64(m.book.Len()))

	log.Info().
		Str("id", p.ID).
		Str("symbol", p.Symbol).
		Str("strategy", p.Strategy).
		Str("status", string(p.Status)).
		Float64("exit", p.ExitPrice).
		Float64("pnl_pct", pnl).
		Msg("position closed")

	if m.journal != nil {
		jctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
		if err := m.journal.RecordClosed(jctx, p); err != nil {
			m.prom.StoreErrors.WithLabelValues("journal").Inc()
			log.Warn().Err(err).Str("id", p.ID).Msg("journal write failed")
		}
		cancel()
	}

	_ = m.out.Broadcast(ctx, notification.KindClose, FormatClose(p))
}

// Dirty reports whether the open set changed since the last save.
func (m *Manager) Dirty() bool { return m.dirty }

// Persist saves the open set if it changed since the last successful save.
// On failure the set stays dirty and is saved on a later call.
func (m *Manager) Persist(ctx context.Context) error {
	if !m.dirty {
		return nil
	}
	return m.Flush(ctx)
}

// Flush saves the open set unconditionally.
func (m *Manager) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := m.store.SavePositions(ctx, m.book.Positions())
	m.prom.StoreSaveDur.Observe(time.Since(start).Seconds())
	if err != nil {
		m.prom.StoreErrors.WithLabelValues("save").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("portfolio: save timed out: %w", err)
		} else {
			err = fmt.Errorf("portfolio: save: %w", err)
		}
		return err
	}
	m.dirty = false
	return nil
}
