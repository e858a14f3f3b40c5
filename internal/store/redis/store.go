// Package redis stores the open-position set in Redis as a single JSON
// snapshot guarded by a circuit breaker.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
)

const snapshotVersion = 1

// Config configures the Redis position store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Key      string // snapshot key, e.g. "signals:positions"

	// Breaker tuning; zero values mean 5 failures and 30s.
	MaxFailures int
	CoolDown    time.Duration
}

// snapshot is the stored document.
type snapshot struct {
	Version   int              `json:"version"`
	SavedAt   time.Time        `json:"saved_at"`
	Positions []model.Position `json:"positions"`
}

// Store persists open positions under one Redis key.
type Store struct {
	client *goredis.Client
	key    string
	cb     *CircuitBreaker
	log    zerolog.Logger
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the store's circuit breaker.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// New connects to Redis, pings the server and returns a Store.
func New(cfg Config, prom *metrics.Metrics, log zerolog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := newStore(client, cfg, prom, log)
	s.log.Info().Str("addr", cfg.Addr).Str("key", s.key).Msg("connected")
	return s, nil
}

func newStore(client *goredis.Client, cfg Config, prom *metrics.Metrics, log zerolog.Logger) *Store {
	if cfg.Key == "" {
		cfg.Key = "signals:positions"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}

	s := &Store{
		client: client,
		key:    cfg.Key,
		cb:     NewCircuitBreaker(cfg.MaxFailures, cfg.CoolDown),
		log:    log.With().Str("component", "redis").Logger(),
	}
	s.cb.OnStateChange = func(from, to State) {
		s.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker transition")
		if prom != nil {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
	}
	return s
}

// LoadPositions returns the saved open set, or an empty slice when the key
// does not exist.
func (s *Store) LoadPositions(ctx context.Context) ([]model.Position, error) {
	var raw []byte
	err := s.cb.Do(ctx, func(ctx context.Context) error {
		b, err := s.client.Get(ctx, s.key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis load positions: %w", err)
	}
	return decodeSnapshot(raw)
}

// SavePositions replaces the saved open set.
func (s *Store) SavePositions(ctx context.Context, positions []model.Position) error {
	data, err := encodeSnapshot(positions, time.Now())
	if err != nil {
		return err
	}
	err = s.cb.Do(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, s.key, data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis save positions: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func encodeSnapshot(positions []model.Position, at time.Time) ([]byte, error) {
	if positions == nil {
		positions = []model.Position{}
	}
	data, err := json.Marshal(snapshot{Version: snapshotVersion, SavedAt: at.UTC(), Positions: positions})
	if err != nil {
		return nil, fmt.Errorf("redis marshal snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(raw []byte) ([]model.Position, error) {
	if len(raw) == 0 {
		return []model.Position{}, nil
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("redis unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("redis snapshot version %d not supported", snap.Version)
	}
	if snap.Positions == nil {
		snap.Positions = []model.Position{}
	}
	return snap.Positions, nil
}

var _ model.PositionStore = (*Store)(nil)
