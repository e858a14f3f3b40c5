package portfolio

import (
	"context"
	"sync"

	"trading-signals/internal/model"
)

// MemoryStore keeps the saved set in process memory. Positions do not
// survive a restart.
type MemoryStore struct {
	mu        sync.Mutex
	positions []model.Position
	saves     int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadPositions(ctx context.Context) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Position, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *MemoryStore) SavePositions(ctx context.Context, positions []model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make([]model.Position, len(positions))
	copy(s.positions, positions)
	s.saves++
	return nil
}

// Saves returns how many times SavePositions was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var _ model.PositionStore = (*MemoryStore)(nil)
