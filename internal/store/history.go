package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordHistory upserts a visit event. A repeat of the same
// (type, value, platform, service) increments use_count and refreshes
// last_used instead of creating a second row.
func (s *Store) RecordHistory(ctx context.Context, event HistoryEvent) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_history", start, err) }()

	typ, value, platform, service := event.historyRow()
	if value == "" {
		err = fmt.Errorf("history event has empty value")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO history (type, value, platform, service, last_used, use_count)
	VALUES (?, ?, ?, ?, ?, 1)
	ON CONFLICT(type, value, platform, service) DO UPDATE SET
		last_used = excluded.last_used,
		use_count = history.use_count + 1
	`

	_, err = s.db.ExecContext(ctx, query, typ, value, platform, service, time.Now().UnixNano())
	if err != nil {
		err = fmt.Errorf("failed to record history: %w", err)
	}
	return err
}

// RecentHistory returns entries of the given type ordered most recently used
// first. Empty platform/service match any; non-empty values filter exactly.
func (s *Store) RecentHistory(ctx context.Context, typ HistoryType, limit int, platform, service string) ([]HistoryEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("recent_history", start, err) }()

	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT id, type, value, platform, service, last_used, use_count
	FROM history
	WHERE type = ?
	  AND (? = '' OR platform = ?)
	  AND (? = '' OR service = ?)
	ORDER BY last_used DESC
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, typ, platform, platform, service, service, limit)
	if err != nil {
		err = fmt.Errorf("failed to query history: %w", err)
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var lastUsed int64

		if err = rows.Scan(
			&entry.ID, &entry.Type, &entry.Value,
			&entry.Platform, &entry.Service, &lastUsed, &entry.UseCount,
		); err != nil {
			err = fmt.Errorf("failed to scan history row: %w", err)
			return nil, err
		}

		entry.LastUsed = time.Unix(0, lastUsed)
		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteHistory removes a single entry by ID.
// Returns ErrNotFound when no entry has that ID.
func (s *Store) DeleteHistory(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_history", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE id = ?", id)
	if err != nil {
		err = fmt.Errorf("failed to delete history entry: %w", err)
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// ClearHistory removes all entries of the given type, or every entry when
// typ is empty. Returns the number of rows removed.
func (s *Store) ClearHistory(ctx context.Context, typ HistoryType) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_history", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	if typ == "" {
		result, err = s.db.ExecContext(ctx, "DELETE FROM history")
	} else {
		result, err = s.db.ExecContext(ctx, "DELETE FROM history WHERE type = ?", typ)
	}
	if err != nil {
		err = fmt.Errorf("failed to clear history: %w", err)
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}
