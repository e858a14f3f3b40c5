// Package scanner runs the scan cycle: rank the universe, fetch each symbol's
// window, evaluate the detectors, open a position for every fired signal and
// re-check every open position against its live price.
//
// RunCycle and RunDailySummary are the only entry points; an external
// scheduler decides when to call them. Both share one lock, so a cycle never
// overlaps another cycle or a summary over the same open-position set.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trading-signals/internal/daily"
	"trading-signals/internal/logger"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
	"trading-signals/internal/portfolio"
	"trading-signals/internal/strategy"
)

// ErrCycleInProgress is returned by RunCycle when another cycle holds the lock.
var ErrCycleInProgress = errors.New("scan cycle already in progress")

// Config tunes the scan cycle.
type Config struct {
	TopN            int
	Interval        string        // primary kline interval, e.g. "15m"
	ConfirmInterval string        // optional higher timeframe that must agree
	WindowSize      int           // bars fetched per symbol
	Workers         int           // concurrent symbol fetch + detection
	FetchTimeout    time.Duration // per external call
	SummaryLoc      *time.Location
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	TraceID   string
	StartedAt time.Time
	Duration  time.Duration
	Symbols   int // symbols in the ranked universe
	Failed    int // symbols whose window could not be fetched
	Signals   []model.Signal
	Opened    []model.Position
	Closed    []model.Position
	Open      int // open positions after the cycle
}

// Engine coordinates one scan cycle at a time.
type Engine struct {
	cfg       Config
	symbols   model.SymbolSource
	bars      model.BarSource
	detectors *strategy.Registry
	confirm   *strategy.Registry // nil when confirmation is off
	positions *portfolio.Manager
	summary   *daily.Aggregator
	health    *metrics.HealthStatus
	prom      *metrics.Metrics
	log       zerolog.Logger

	mu          sync.Mutex
	periodStart time.Time

	now func() time.Time
}

// NewEngine creates an Engine. params builds the detector registry for the
// primary interval and, when set, the confirm interval. health may be nil.
func NewEngine(cfg Config, symbols model.SymbolSource, bars model.BarSource, params strategy.Params,
	positions *portfolio.Manager, summary *daily.Aggregator, health *metrics.HealthStatus,
	prom *metrics.Metrics, log zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.SummaryLoc == nil {
		cfg.SummaryLoc = time.UTC
	}
	e := &Engine{
		cfg:       cfg,
		symbols:   symbols,
		bars:      bars,
		detectors: strategy.NewRegistry(params, cfg.Interval),
		positions: positions,
		summary:   summary,
		health:    health,
		prom:      prom,
		log:       log.With().Str("component", "scanner").Logger(),
		now:       time.Now,
	}
	if cfg.ConfirmInterval != "" && cfg.ConfirmInterval != cfg.Interval {
		e.confirm = strategy.NewRegistry(params, cfg.ConfirmInterval)
	}
	if cfg.WindowSize < e.detectors.MaxLookback() {
		e.log.Warn().
			Int("window", cfg.WindowSize).
			Int("max_lookback", e.detectors.MaxLookback()).
			Msg("window shorter than some detectors need; they will be skipped")
	}
	e.periodStart = e.now()
	return e
}

// symbolResult is the detection outcome for one symbol.
type symbolResult struct {
	signals []model.Signal
	failed  bool
}

// RunCycle runs one scan cycle: reconcile open positions, then scan the
// universe for new signals. It returns ErrCycleInProgress without doing any
// work when a cycle is already running.
//
// Cancelling ctx stops the cycle from starting new symbols; work already
// started (including position mutations and the final save) completes.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.mu.TryLock() {
		e.prom.CyclesSkipped.Inc()
		e.log.Warn().Msg("cycle trigger skipped, previous cycle still running")
		return CycleReport{}, ErrCycleInProgress
	}
	defer e.mu.Unlock()

	start := e.now()
	traceID := logger.GenerateTraceID("cycle", start)
	ctx = logger.WithTraceID(ctx, traceID)
	// In-flight work outlives a shutdown signal; every call below carries
	// its own timeout.
	work := context.WithoutCancel(ctx)
	log := logger.FromContext(ctx, e.log)

	report := CycleReport{TraceID: traceID, StartedAt: start}
	log.Info().Msg("cycle started")

	report.Closed = e.positions.Reconcile(work)

	err := e.scan(ctx, work, log, &report)

	if perr := e.positions.Persist(work); perr != nil {
		log.Error().Err(perr).Msg("failed to persist open positions, will retry next cycle")
		err = errors.Join(err, perr)
	}

	report.Open = e.positions.Book().Len()
	report.Duration = e.now().Sub(start)

	result := "ok"
	if err != nil {
		result = "error"
	}
	e.prom.CyclesTotal.WithLabelValues(result).Inc()
	e.prom.CycleDuration.Observe(report.Duration.Seconds())
	if e.health != nil {
		e.health.RecordCycle(start, report.Open, err)
	}

	log.Info().
		Int("symbols", report.Symbols).
		Int("failed", report.Failed).
		Int("signals", len(report.Signals)).
		Int("opened", len(report.Opened)).
		Int("closed", len(report.Closed)).
		Int("open", report.Open).
		Dur("took", report.Duration).
		Msg("cycle finished")
	return report, err
}

// scan ranks the universe, evaluates every symbol and opens the fired
// signals in ranking order.
func (e *Engine) scan(ctx, work context.Context, log zerolog.Logger, report *CycleReport) error {
	symbols, err := e.universe(work)
	if err != nil {
		e.prom.FetchErrors.WithLabelValues("symbols").Inc()
		log.Error().Err(err).Str("stage", "symbols").Msg("symbol ranking failed, skipping detection")
		return fmt.Errorf("scanner: rank symbols: %w", err)
	}
	report.Symbols = len(symbols)

	results := make([]symbolResult, len(symbols))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, sym := range symbols {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(symbols)-i).Msg("shutdown requested, not starting remaining symbols")
			break
		}
		g.Go(func() error {
			results[i] = e.evaluate(work, log, sym)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.failed {
			report.Failed++
		}
		for _, sig := range r.signals {
			report.Signals = append(report.Signals, sig)
			if p, ok := e.positions.Open(work, sig); ok {
				report.Opened = append(report.Opened, p)
			}
		}
	}
	return nil
}

// universe returns the ranked symbols with duplicates removed.
func (e *Engine) universe(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	ranked, err := e.symbols.TopSymbols(ctx, e.cfg.TopN)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, s := range ranked {
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// evaluate fetches one symbol's window and runs the detectors on it. It has
// no side effects besides logging and metrics.
func (e *Engine) evaluate(ctx context.Context, log zerolog.Logger, symbol string) symbolResult {
	e.prom.SymbolsScanned.Inc()
	log = log.With().Str("symbol", symbol).Logger()

	w, err := e.window(ctx, symbol, e.cfg.Interval)
	if err != nil {
		e.prom.FetchErrors.WithLabelValues("bars").Inc()
		log.Warn().Err(err).Str("stage", "bars").Msg("window fetch failed, symbol skipped")
		return symbolResult{failed: true}
	}
	if w.Len() == 0 {
		return symbolResult{}
	}

	signals, skipped := e.detectors.Evaluate(symbol, w)
	for _, name := range skipped {
		e.prom.DetectorSkipped.WithLabelValues(name).Inc()
		log.Debug().Str("strategy", name).Int("bars", w.Len()).Msg("window too short, detector skipped")
	}
	if len(signals) == 0 || e.confirm == nil {
		return symbolResult{signals: signals}
	}
	return symbolResult{signals: e.confirmSignals(ctx, log, symbol, signals)}
}

// confirmSignals keeps the signals whose detector fires the same side on the
// confirm interval.
func (e *Engine) confirmSignals(ctx context.Context, log zerolog.Logger, symbol string, signals []model.Signal) []model.Signal {
	w, err := e.window(ctx, symbol, e.cfg.ConfirmInterval)
	if err != nil {
		e.prom.FetchErrors.WithLabelValues("bars").Inc()
		log.Warn().Err(err).Str("stage", "confirm").Msg("confirm window fetch failed, signals dropped")
		return nil
	}

	var kept []model.Signal
	for _, sig := range signals {
		d, ok := e.confirm.Lookup(sig.Strategy)
		if !ok || w.Len() < d.Lookback() {
			continue
		}
		if c := d.Detect(symbol, w); c != nil && c.Side == sig.Side {
			kept = append(kept, sig)
			continue
		}
		log.Debug().
			Str("strategy", sig.Strategy).
			Str("interval", e.cfg.ConfirmInterval).
			Msg("signal not confirmed on higher timeframe")
	}
	return kept
}

func (e *Engine) window(ctx context.Context, symbol, interval string) (model.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	return e.bars.Bars(ctx, symbol, interval, e.cfg.WindowSize)
}

// RunDailySummary emits the summary of the counters accumulated since the
// previous summary (or since start) and resets them. It waits for an
// in-flight cycle to finish first.
func (e *Engine) RunDailySummary(ctx context.Context) (daily.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	day := e.periodStart.In(e.cfg.SummaryLoc)
	e.periodStart = e.now()

	snap, err := e.summary.Summarize(context.WithoutCancel(ctx), day, e.positions.Book().Len())
	e.prom.DailySummaries.Inc()
	return snap, err
}

// Shutdown waits for an in-flight cycle and saves the open set once more.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Flush(ctx)
}
