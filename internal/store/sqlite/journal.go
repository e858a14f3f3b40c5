package sqlite

import (
	"context"
	"fmt"
	"time"

	"trading-signals/internal/model"
)

// RecordClosed appends a closed position to the trade journal.
func (s *Store) RecordClosed(ctx context.Context, p model.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO closed_positions
			(id, symbol, side, strategy, interval, entry, sl, tp, opened_at, status, closed_at, exit_price, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Symbol,
		string(p.Side),
		p.Strategy,
		p.Interval,
		p.Entry,
		p.StopLoss,
		p.TakeProfit,
		p.OpenedAt.UnixNano(),
		string(p.Status),
		p.ClosedAt.UnixNano(),
		p.ExitPrice,
		p.PnLPct(p.ExitPrice),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert closed position: %w", err)
	}
	return nil
}

// ClosedRecord is a row of the trade journal.
type ClosedRecord struct {
	model.Position
	PnLPct float64 `json:"pnl_pct"`
}

// RecentClosed returns the last limit closed positions, newest first.
func (s *Store) RecentClosed(ctx context.Context, limit int) ([]ClosedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, strategy, interval, entry, sl, tp, opened_at, status, closed_at, exit_price, pnl_pct
		FROM closed_positions
		ORDER BY closed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query closed_positions: %w", err)
	}
	defer rows.Close()

	var records []ClosedRecord
	for rows.Next() {
		var r ClosedRecord
		var side, status string
		var openedAt, closedAt int64
		if err := rows.Scan(&r.ID, &r.Symbol, &side, &r.Strategy, &r.Interval, &r.Entry, &r.StopLoss,
			&r.TakeProfit, &openedAt, &status, &closedAt, &r.ExitPrice, &r.PnLPct); err != nil {
			return nil, fmt.Errorf("sqlite scan closed_positions: %w", err)
		}
		r.Side = model.Side(side)
		r.Status = model.Status(status)
		r.OpenedAt = time.Unix(0, openedAt).UTC()
		r.ClosedAt = time.Unix(0, closedAt).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ model.ClosedJournal = (*Store)(nil)
