// Package portfolio tracks the open positions opened from fired signals and
// closes them when price reaches their take-profit or stop-loss.
//
// The Book holds the open set in opening order. The Manager is its only
// writer: it opens positions from signals, re-checks every open position
// against the live price, and persists the set after it changes.
package portfolio

import (
	"errors"
	"sync"

	"trading-signals/internal/model"
)

// ErrDuplicate is returned when a position with the same symbol, strategy
// and open time is already in the book.
var ErrDuplicate = errors.New("portfolio: duplicate position")

// Book tracks all open positions.
type Book struct {
	mu        sync.RWMutex
	positions []model.Position // opening order
	keys      map[string]struct{}
}

// NewBook creates a new empty Book.
func NewBook() *Book {
	return &Book{
		keys: make(map[string]struct{}),
	}
}

// Add appends an open position.
func (b *Book) Add(p model.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := p.Key()
	if _, ok := b.keys[key]; ok {
		return ErrDuplicate
	}
	b.keys[key] = struct{}{}
	b.positions = append(b.positions, p)
	return nil
}

// Remove drops the position with the given ID. It reports whether one was
// found.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.positions {
		if b.positions[i].ID == id {
			delete(b.keys, b.positions[i].Key())
			b.positions = append(b.positions[:i], b.positions[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the book's contents for positions, skipping closed entries
// and exact duplicates. It returns how many were kept.
func (b *Book) Replace(positions []model.Position) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = b.positions[:0]
	b.keys = make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p.Status != model.StatusOpen {
			continue
		}
		key := p.Key()
		if _, ok := b.keys[key]; ok {
			continue
		}
		b.keys[key] = struct{}{}
		b.positions = append(b.positions, p)
	}
	return len(b.positions)
}

// Positions returns a snapshot of all open positions in opening order.
func (b *Book) Positions() []model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]model.Position, len(b.positions))
	copy(result, b.positions)
	return result
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// HasOpen reports whether a position with the same symbol, strategy and
// side is open.
func (b *Book) HasOpen(symbol, strategy string, side model.Side) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.positions {
		if p.Symbol == symbol && p.Strategy == strategy && p.Side == side {
			return true
		}
	}
	return false
}
