package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for the signal scanner.
type Metrics struct {
	// Scan cycle
	CyclesTotal     *prometheus.CounterVec // labels: result=ok|error
	CyclesSkipped   prometheus.Counter
	CycleDuration   prometheus.Histogram
	SymbolsScanned  prometheus.Counter
	DetectorSkipped *prometheus.CounterVec // labels: strategy
	FetchErrors     *prometheus.CounterVec // labels: source=symbols|bars|price

	// Signals and positions
	SignalsTotal   *prometheus.CounterVec // labels: strategy, side
	OpenPositions  prometheus.Gauge
	ClosedTotal    *prometheus.CounterVec // labels: status
	DailySummaries prometheus.Counter

	// Delivery and persistence
	NotifyFailures *prometheus.CounterVec // labels: kind=signal|close|summary
	StoreSaveDur   prometheus.Histogram
	StoreErrors    *prometheus.CounterVec // labels: op=load|save|journal

	// Exchange
	StreamReconnects prometheus.Counter
	PriceFallbacks   prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_cycles_total",
			Help: "Scan cycles completed, by result",
		}, []string{"result"}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_cycles_skipped_total",
			Help: "Cycle triggers skipped because a cycle was already running",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_cycle_duration_seconds",
			Help:    "Wall-clock duration of a scan cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_symbols_scanned_total",
			Help: "Symbols whose window was fetched and evaluated",
		}),
		DetectorSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_detector_skipped_total",
			Help: "Detector evaluations skipped on a short window",
		}, []string{"strategy"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_fetch_errors_total",
			Help: "External data fetch failures, by source",
		}, []string{"source"}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "Signals fired, by strategy and side",
		}, []string{"strategy", "side"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_open_positions",
			Help: "Positions currently open",
		}),
		ClosedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_positions_closed_total",
			Help: "Positions closed, by status",
		}, []string{"status"}),
		DailySummaries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_daily_summaries_total",
			Help: "Daily summaries emitted",
		}),

		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_notify_failures_total",
			Help: "Notification deliveries that failed, by message kind",
		}, []string{"kind"}),
		StoreSaveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_store_save_duration_seconds",
			Help:    "Open-position snapshot save latency",
			Buckets: prometheus.DefBuckets,
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_store_errors_total",
			Help: "Persistence failures, by operation",
		}, []string{"op"}),

		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_price_stream_reconnects_total",
			Help: "Price stream WebSocket reconnection attempts",
		}),
		PriceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_price_rest_fallbacks_total",
			Help: "Price lookups served by REST because the stream quote was missing or stale",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CyclesSkipped,
		m.CycleDuration,
		m.SymbolsScanned,
		m.DetectorSkipped,
		m.FetchErrors,
		m.SignalsTotal,
		m.OpenPositions,
		m.ClosedTotal,
		m.DailySummaries,
		m.NotifyFailures,
		m.StoreSaveDur,
		m.StoreErrors,
		m.StreamReconnects,
		m.PriceFallbacks,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
	LastCycleErr    string    `json:"last_cycle_error"`
	OpenPositions   int       `json:"open_positions"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	// Which dependencies the process actually uses.
	usesRedis  bool
	usesSQLite bool
	usesStream bool
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// Require marks which dependencies count toward overall health.
func (h *HealthStatus) Require(redis, sqlite, stream bool) {
	h.mu.Lock()
	h.usesRedis, h.usesSQLite, h.usesStream = redis, sqlite, stream
	h.mu.Unlock()
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

// RecordCycle stores the outcome of the latest scan cycle.
func (h *HealthStatus) RecordCycle(at time.Time, open int, err error) {
	h.mu.Lock()
	h.LastCycleAt = at
	h.OpenPositions = open
	h.LastCycleErr = ""
	if err != nil {
		h.LastCycleErr = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are
// skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.usesRedis && !h.RedisConnected
	sqliteDown := h.usesSQLite && !h.SQLiteOK
	if redisDown || sqliteDown || h.LastCycleErr != "" {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.usesStream && !h.StreamConnected && overallStatus == "healthy" {
		// REST fallback still serves prices.
		overallStatus = "degraded"
	}

	cycleAge := ""
	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = time.Since(h.LastCycleAt).Round(time.Second).String()
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleAt     string  `json:"last_cycle_at"`
		CycleAge        string  `json:"cycle_age"`
		LastCycleErr    string  `json:"last_cycle_error,omitempty"`
		OpenPositions   int     `json:"open_positions"`
		StreamConnected bool    `json:"stream_connected"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCycleAt:     lastCycle,
		CycleAge:        cycleAge,
		LastCycleErr:    h.LastCycleErr,
		OpenPositions:   h.OpenPositions,
		StreamConnected: h.StreamConnected,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
	log    zerolog.Logger
}

// NewServer creates a metrics and health server backed by gatherer.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "metrics").Logger(),
	}
}

// Handle registers an extra handler next to /metrics and /healthz. Call it
// before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("server listening")
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
