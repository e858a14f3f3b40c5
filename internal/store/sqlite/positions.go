package sqlite

import (
	"context"
	"fmt"
	"time"

	"trading-signals/internal/model"
)

// LoadPositions returns the saved open set in opening order.
func (s *Store) LoadPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, strategy, interval, entry, sl, tp, opened_at, status
		FROM open_positions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query open_positions: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		var p model.Position
		var side, status string
		var openedAt int64
		if err := rows.Scan(&p.ID, &p.Symbol, &side, &p.Strategy, &p.Interval,
			&p.Entry, &p.StopLoss, &p.TakeProfit, &openedAt, &status); err != nil {
			return nil, fmt.Errorf("sqlite scan open_positions: %w", err)
		}
		p.Side = model.Side(side)
		p.Status = model.Status(status)
		p.OpenedAt = time.Unix(0, openedAt).UTC()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// SavePositions replaces the saved open set in a single transaction.
func (s *Store) SavePositions(ctx context.Context, positions []model.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM open_positions`); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear open_positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO open_positions (seq, id, symbol, side, strategy, interval, entry, sl, tp, opened_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range positions {
		_, err := stmt.ExecContext(ctx, i, p.ID, p.Symbol, string(p.Side), p.Strategy, p.Interval,
			p.Entry, p.StopLoss, p.TakeProfit, p.OpenedAt.UnixNano(), string(p.Status))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert position %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

var _ model.PositionStore = (*Store)(nil)
