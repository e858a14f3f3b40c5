// Package app wires the scanner's collaborators from configuration and owns
// the process lifecycle.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"trading-signals/config"
	"trading-signals/internal/api"
	"trading-signals/internal/daily"
	"trading-signals/internal/exchange/binance"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
	"trading-signals/internal/notification"
	"trading-signals/internal/portfolio"
	"trading-signals/internal/scanner"
	"trading-signals/internal/schedule"
	redisstore "trading-signals/internal/store/redis"
	sqlitestore "trading-signals/internal/store/sqlite"
)

const (
	livenessInterval = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Service is the top-level orchestrator for the scanner.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config
	log zerolog.Logger

	prom   *metrics.Metrics
	health *metrics.HealthStatus
	server *metrics.Server

	client *binance.Client
	stream *binance.PriceStream // nil when the stream is disabled

	sqlite *sqlitestore.Store // nil unless STORE is sqlite or redis
	redis  *redisstore.Store  // nil unless STORE is redis

	registry *notification.Registry
	manager  *portfolio.Manager
	engine   *scanner.Engine

	summaryAt schedule.Daily
}

// Option adjusts how New builds the service.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// WithRegistry registers metrics on reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// New creates a Service from cfg. It opens the configured stores but does
// not start any goroutine.
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Service, error) {
	o := options{registerer: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&o)
	}

	summaryAt, err := schedule.ParseDaily(cfg.SummaryAt, cfg.SummaryTZ)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:       cfg,
		log:       log.With().Str("component", "app").Logger(),
		prom:      metrics.NewMetrics(o.registerer),
		health:    metrics.NewHealthStatus(),
		summaryAt: summaryAt,
	}

	// ---- Stores ----
	if err := svc.openStores(log); err != nil {
		return nil, err
	}

	// ---- Market data ----
	svc.client = binance.NewClient(binance.Config{
		BaseURL:    cfg.BinanceBaseURL,
		QuoteAsset: cfg.QuoteAsset,
		RateLimit:  cfg.BinanceRateLimit,
		Timeout:    cfg.FetchTimeout,
	}, log)

	var prices model.PriceSource = svc.client
	if cfg.BinanceStreamURL != "" {
		svc.stream = binance.NewPriceStream(cfg.BinanceStreamURL, 0, svc.client, log)
		svc.stream.OnConnState = svc.health.SetStreamConnected
		svc.stream.OnReconnect = svc.prom.StreamReconnects.Inc
		svc.stream.OnFallback = svc.prom.PriceFallbacks.Inc
		prices = svc.stream
	}

	// ---- Notification ----
	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		svc.closeStores()
		return nil, err
	}
	var subscribers notification.SubscriberStore
	if svc.sqlite != nil {
		subscribers = svc.sqlite
	}
	svc.registry = notification.NewRegistry(subscribers, cfg.TelegramChatIDs...)
	out := notification.NewBroadcaster(notifier, svc.registry, cfg.FetchTimeout, svc.prom, log)

	// ---- Lifecycle + scanner ----
	var store model.PositionStore
	var journal model.ClosedJournal
	switch {
	case svc.redis != nil:
		store = svc.redis
	case svc.sqlite != nil:
		store = svc.sqlite
	default:
		store = portfolio.NewMemoryStore()
	}
	if svc.sqlite != nil {
		journal = svc.sqlite
	}

	counters := daily.NewCounters()
	svc.manager = portfolio.NewManager(portfolio.Config{
		SuppressDuplicates: cfg.SuppressDuplicates,
		PriceTimeout:       cfg.FetchTimeout,
		StoreTimeout:       cfg.FetchTimeout,
		Workers:            cfg.ScanWorkers,
	}, prices, store, journal, counters, out, svc.prom, log)

	svc.engine = scanner.NewEngine(scanner.Config{
		TopN:            cfg.TopN,
		Interval:        cfg.ScanInterval,
		ConfirmInterval: cfg.ConfirmInterval,
		WindowSize:      cfg.WindowSize,
		Workers:         cfg.ScanWorkers,
		FetchTimeout:    cfg.FetchTimeout,
		SummaryLoc:      summaryAt.Loc,
	}, svc.client, svc.client, cfg.Strategy, svc.manager, daily.NewAggregator(counters, out, log),
		svc.health, svc.prom, log)

	// ---- HTTP ----
	svc.health.Require(svc.redis != nil, svc.sqlite != nil, svc.stream != nil)
	svc.server = metrics.NewServer(cfg.MetricsAddr, svc.health, o.gatherer, log)
	var trades api.TradeJournal
	if svc.sqlite != nil {
		trades = svc.sqlite
	}
	svc.server.Handle("/api/", api.NewRouter(svc.manager.Book(), trades, svc.registry))

	return svc, nil
}

func (svc *Service) openStores(log zerolog.Logger) error {
	cfg := svc.cfg
	if cfg.Store == config.StoreMemory {
		svc.log.Warn().Msg("memory store selected, open positions will not survive a restart")
		return nil
	}

	var err error
	svc.sqlite, err = sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		return fmt.Errorf("app: open sqlite: %w", err)
	}

	if cfg.Store == config.StoreRedis {
		svc.redis, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Key:      cfg.RedisPositionsKey,
		}, svc.prom, log)
		if err != nil {
			svc.sqlite.Close()
			return fmt.Errorf("app: connect redis: %w", err)
		}
	}
	return nil
}

func buildNotifier(cfg *config.Config, log zerolog.Logger) (notification.Notifier, error) {
	var all notification.Multi
	for _, name := range cfg.Notifiers {
		switch name {
		case config.NotifierTelegram:
			all = append(all, notification.NewTelegramNotifier(cfg.TelegramToken, "", log))
		case config.NotifierWebhook:
			all = append(all, notification.NewWebhookNotifier(cfg.WebhookURL, log))
		case config.NotifierLog:
			all = append(all, notification.NewLogNotifier(log))
		default:
			return nil, fmt.Errorf("app: unknown notifier %q", name)
		}
	}
	if len(all) == 1 {
		return all[0], nil
	}
	return all, nil
}

// Engine returns the scan engine.
func (svc *Service) Engine() *scanner.Engine { return svc.engine }

// Manager returns the position lifecycle manager.
func (svc *Service) Manager() *portfolio.Manager { return svc.manager }

// Restore loads subscribers and the persisted open set. A store that
// cannot be read is fatal: starting empty would overwrite it on the first
// save.
func (svc *Service) Restore(ctx context.Context) error {
	if err := svc.registry.Load(ctx); err != nil {
		svc.log.Warn().Err(err).Msg("subscriber load failed, using configured chat ids only")
	}
	if err := svc.manager.Restore(ctx); err != nil {
		return err
	}
	return nil
}

// Run starts all subsystems and blocks until ctx is cancelled. The in-flight
// cycle finishes and the open set is saved before Run returns.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	svc.log.Info().Msg("starting signal scanner")

	if err := svc.Restore(ctx); err != nil {
		svc.closeStores()
		return err
	}

	// ---- Start subsystems ----
	svc.server.Start()
	svc.health.StartLivenessChecker(ctx, svc.redisClient(), svc.sqlDB(), livenessInterval)

	var wg sync.WaitGroup
	if svc.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.stream.Run(ctx)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		schedule.Every(ctx, cfg.ScanEvery, svc.runCycle)
	}()
	go func() {
		defer wg.Done()
		schedule.At(ctx, svc.summaryAt, svc.runSummary)
	}()

	next := svc.summaryAt.Next(time.Now())
	svc.log.Info().
		Str("interval", cfg.ScanInterval).
		Str("confirm_interval", cfg.ConfirmInterval).
		Dur("every", cfg.ScanEvery).
		Int("top_n", cfg.TopN).
		Strs("notifiers", cfg.Notifiers).
		Str("store", cfg.Store).
		Bool("stream", svc.stream != nil).
		Str("summary_at", svc.summaryAt.String()).
		Str("next_summary_in", schedule.FormatUntil(time.Until(next))).
		Msg("all systems running")

	// Block until context cancelled
	<-ctx.Done()
	wg.Wait()

	// ---- Graceful shutdown ----
	return svc.shutdown()
}

func (svc *Service) runCycle(ctx context.Context) {
	_, err := svc.engine.RunCycle(ctx)
	if err != nil && !errors.Is(err, scanner.ErrCycleInProgress) {
		svc.log.Warn().Err(err).Msg("cycle completed with errors")
	}
}

func (svc *Service) runSummary(ctx context.Context, at time.Time) {
	if _, err := svc.engine.RunDailySummary(ctx); err != nil {
		svc.log.Warn().Err(err).Time("scheduled_for", at).Msg("daily summary not delivered")
	}
}

// shutdown saves the open set and closes connections.
func (svc *Service) shutdown() error {
	svc.log.Info().Msg("shutdown signal received, saving open positions")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := svc.engine.Shutdown(ctx)
	if err != nil {
		svc.log.Error().Err(err).Msg("final save failed")
	}
	if serr := svc.server.Stop(ctx); serr != nil {
		svc.log.Warn().Err(serr).Msg("metrics server shutdown")
	}
	svc.closeStores()

	svc.log.Info().Msg("shutdown complete")
	return err
}

// Close releases the stores without saving. Use it when Run was never
// called.
func (svc *Service) Close() {
	svc.closeStores()
}

func (svc *Service) closeStores() {
	if svc.redis != nil {
		svc.redis.Close()
	}
	if svc.sqlite != nil {
		svc.sqlite.Close()
	}
}

func (svc *Service) redisClient() *goredis.Client {
	if svc.redis == nil {
		return nil
	}
	return svc.redis.Client()
}

func (svc *Service) sqlDB() *sql.DB {
	if svc.sqlite == nil {
		return nil
	}
	return svc.sqlite.DB()
}
