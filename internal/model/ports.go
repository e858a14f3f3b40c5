package model

import (
	"context"
	"errors"
)

// ── Collaborator ports ──
// The engine only talks to the outside world through these interfaces.
// Concrete implementations live in internal/exchange and internal/store.

// ErrNoPrice is returned by a PriceSource that has no quote for a symbol.
var ErrNoPrice = errors.New("no price available")

// SymbolSource ranks the tradeable universe, most liquid first.
type SymbolSource interface {
	TopSymbols(ctx context.Context, limit int) ([]string, error)
}

// BarSource returns the most recent bars for a symbol, oldest first.
type BarSource interface {
	Bars(ctx context.Context, symbol, interval string, limit int) (Window, error)
}

// PriceSource returns the current price of a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// PositionStore persists the open-position set between restarts.
type PositionStore interface {
	// LoadPositions returns the last saved set, or an empty slice.
	LoadPositions(ctx context.Context) ([]Position, error)

	// SavePositions replaces the saved set with positions.
	SavePositions(ctx context.Context, positions []Position) error
}

// ClosedJournal records positions after they close.
type ClosedJournal interface {
	RecordClosed(ctx context.Context, p Position) error
}
