// Package sqlite persists the open-position set, the closed-trade journal
// and the subscriber list in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Store is a SQLite-backed position store, trade journal and subscriber
// table. A single connection serializes writers.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log = log.With().Str("component", "sqlite").Logger()
	log.Info().Str("path", cfg.DBPath).Msg("opened database")
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS open_positions (
			seq         INTEGER NOT NULL,
			id          TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			strategy    TEXT    NOT NULL,
			interval    TEXT    NOT NULL DEFAULT '',
			entry       REAL    NOT NULL,
			sl          REAL    NOT NULL,
			tp          REAL    NOT NULL,
			opened_at   INTEGER NOT NULL,
			status      TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS closed_positions (
			id          TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			strategy    TEXT    NOT NULL,
			interval    TEXT    NOT NULL DEFAULT '',
			entry       REAL    NOT NULL,
			sl          REAL    NOT NULL,
			tp          REAL    NOT NULL,
			opened_at   INTEGER NOT NULL,
			status      TEXT    NOT NULL,
			closed_at   INTEGER NOT NULL,
			exit_price  REAL    NOT NULL,
			pnl_pct     REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_closed_closed_at ON closed_positions(closed_at);
		CREATE INDEX IF NOT EXISTS idx_closed_strategy ON closed_positions(strategy);

		CREATE TABLE IF NOT EXISTS subscribers (
			chat_id    TEXT    PRIMARY KEY,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
