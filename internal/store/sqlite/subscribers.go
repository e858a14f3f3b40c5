package sqlite

import (
	"context"
	"fmt"
)

// LoadSubscribers returns every registered chat ID.
func (s *Store) LoadSubscribers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite scan subscribers: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSubscriber registers a chat ID. Adding an existing ID is a no-op.
func (s *Store) AddSubscriber(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO subscribers (chat_id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("sqlite insert subscriber: %w", err)
	}
	return nil
}

// RemoveSubscriber unregisters a chat ID.
func (s *Store) RemoveSubscriber(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite delete subscriber: %w", err)
	}
	return nil
}
