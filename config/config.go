package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trading-signals/internal/strategy"
)

// ErrMissing is wrapped by Load when a required setting is absent.
var ErrMissing = errors.New("required setting missing")

// Notifier and store names accepted by NOTIFIER and STORE.
const (
	NotifierTelegram = "telegram"
	NotifierWebhook  = "webhook"
	NotifierLog      = "log"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogLevel string

	// Binance market data
	BinanceBaseURL   string
	BinanceStreamURL string // "" disables the live price stream
	BinanceRateLimit float64 `validate:"gt=0"`
	QuoteAsset       string  `validate:"required"`

	// Scan cycle
	TopN            int           `validate:"min=1"`
	ScanInterval    string        `validate:"required"`
	ConfirmInterval string        // "" disables multi-timeframe confirmation
	WindowSize      int           `validate:"min=2"`
	ScanEvery       time.Duration `validate:"gt=0"`
	ScanWorkers     int           `validate:"min=1"`
	FetchTimeout    time.Duration `validate:"gt=0"`

	// Daily summary wall clock
	SummaryAt string `validate:"required"`
	SummaryTZ string

	SuppressDuplicates bool

	// Notification
	Notifiers       []string `validate:"min=1,dive,oneof=telegram webhook log"`
	TelegramToken   string
	TelegramChatIDs []string
	WebhookURL      string

	// Infrastructure
	Store             string `validate:"oneof=sqlite redis memory"`
	SQLitePath        string
	RedisAddr         string
	RedisPassword     string
	RedisPositionsKey string
	MetricsAddr       string

	// Strategy parameters: defaults, then STRATEGY_CONFIG, then env overrides.
	StrategyFile string
	Strategy     strategy.Params
}

var validate = validator.New()

// Load reads configuration from the environment (and .env when present),
// applies the optional strategy YAML file and validates the result.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		BinanceStreamURL: os.Getenv("BINANCE_STREAM_URL"),
		BinanceRateLimit: getEnvFloat("BINANCE_RATE_LIMIT", 10),
		QuoteAsset:       strings.ToUpper(getEnv("QUOTE_ASSET", "USDT")),

		TopN:            getEnvInt("TOP_N", 100),
		ScanInterval:    getEnv("SCAN_INTERVAL", "15m"),
		ConfirmInterval: os.Getenv("CONFIRM_INTERVAL"),
		WindowSize:      getEnvInt("WINDOW_SIZE", 100),
		ScanEvery:       getEnvDuration("SCAN_EVERY", 5*time.Minute),
		ScanWorkers:     getEnvInt("SCAN_WORKERS", 8),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 10*time.Second),

		SummaryAt: getEnv("SUMMARY_AT", "00:00"),
		SummaryTZ: getEnv("SUMMARY_TZ", "UTC"),

		SuppressDuplicates: getEnvBool("SUPPRESS_DUPLICATES", false),

		Notifiers:       splitAndTrim(strings.ToLower(getEnv("NOTIFIER", NotifierTelegram))),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatIDs: splitAndTrim(os.Getenv("TELEGRAM_CHAT_IDS")),
		WebhookURL:      os.Getenv("WEBHOOK_URL"),

		Store:             strings.ToLower(getEnv("STORE", StoreSQLite)),
		SQLitePath:        getEnv("SQLITE_PATH", "data/signals.db"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisPositionsKey: getEnv("REDIS_POSITIONS_KEY", "signals:positions"),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),

		StrategyFile: os.Getenv("STRATEGY_CONFIG"),
	}

	// BINANCE_STREAM_URL set to "" explicitly disables the stream; unset
	// means the default endpoint.
	if _, set := os.LookupEnv("BINANCE_STREAM_URL"); !set {
		cfg.BinanceStreamURL = "wss://stream.binance.com:9443/ws/!miniTicker@arr"
	}

	params, err := LoadStrategy(cfg.StrategyFile)
	if err != nil {
		return nil, err
	}
	params.Exits.StopLossPct = getEnvFloat("STOP_LOSS_PCT", params.Exits.StopLossPct)
	params.Exits.TakeProfitPct = getEnvFloat("TAKE_PROFIT_PCT", params.Exits.TakeProfitPct)
	params.MACross.Enabled = getEnvBool("ENABLE_MA_CROSS", params.MACross.Enabled)
	cfg.Strategy = params

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStrategy returns the default strategy parameters overlaid with the
// YAML file at path. An empty path returns the defaults.
func LoadStrategy(path string) (strategy.Params, error) {
	p := strategy.DefaultParams()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("config: parse strategy file %s: %w", path, err)
	}
	return p, nil
}

// Validate checks field constraints and required credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ConfirmInterval == c.ScanInterval {
		c.ConfirmInterval = ""
	}

	for _, n := range c.Notifiers {
		switch n {
		case NotifierTelegram:
			if c.TelegramToken == "" {
				return fmt.Errorf("config: TELEGRAM_TOKEN: %w", ErrMissing)
			}
			if len(c.TelegramChatIDs) == 0 {
				return fmt.Errorf("config: TELEGRAM_CHAT_IDS: %w", ErrMissing)
			}
		case NotifierWebhook:
			if c.WebhookURL == "" {
				return fmt.Errorf("config: WEBHOOK_URL: %w", ErrMissing)
			}
		}
	}
	if c.Store == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("config: REDIS_ADDR: %w", ErrMissing)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("config: SQLITE_PATH: %w", ErrMissing)
	}
	return nil
}

// HasNotifier reports whether name is among the selected notifiers.
func (c *Config) HasNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if n == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
