package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// isUniqueConstraint reports whether err is a UNIQUE constraint violation
// from the sqlite3 driver.
func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreatePlaylist creates a new playlist.
// Returns ErrNameTaken when the name is already in use.
func (s *Store) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_playlist", start, err) }()

	if name == "" {
		err = fmt.Errorf("playlist name must not be empty")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO playlists (name, description) VALUES (?, ?)",
		name, description,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			err = fmt.Errorf("%w: %s", ErrNameTaken, name)
			return nil, err
		}
		err = fmt.Errorf("failed to create playlist: %w", err)
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	var p *Playlist
	p, err = s.getPlaylistLocked(ctx, id)
	return p, err
}

// GetPlaylist returns a playlist with its item count.
// Returns ErrNotFound when no playlist has that ID.
func (s *Store) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_playlist", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p, err := s.getPlaylistLocked(ctx, id)
	return p, err
}

// getPlaylistLocked fetches a playlist row; the caller holds the lock.
func (s *Store) getPlaylistLocked(ctx context.Context, id int64) (*Playlist, error) {
	var p Playlist
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM playlist_items WHERE playlist_id = p.id)
		FROM playlists p WHERE p.id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &createdAt, &updatedAt, &p.ItemCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get playlist %d: %w", id, err)
	}

	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// ListPlaylists returns all playlists with item counts, ordered by name.
func (s *Store) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_playlists", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM playlist_items WHERE playlist_id = p.id)
		FROM playlists p
		ORDER BY p.name COLLATE NOCASE
	`)
	if err != nil {
		err = fmt.Errorf("failed to list playlists: %w", err)
		return nil, err
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		var createdAt, updatedAt int64

		if err = rows.Scan(&p.ID, &p.Name, &p.Description, &createdAt, &updatedAt, &p.ItemCount); err != nil {
			err = fmt.Errorf("failed to scan playlist row: %w", err)
			return nil, err
		}

		p.CreatedAt = time.Unix(createdAt, 0)
		p.UpdatedAt = time.Unix(updatedAt, 0)
		playlists = append(playlists, p)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// UpdatePlaylist renames and/or re-describes a playlist. Nil fields are left
// unchanged. Returns ErrNotFound for an unknown ID and ErrNameTaken on a
// name collision.
func (s *Store) UpdatePlaylist(ctx context.Context, id int64, name, description *string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_playlist", start, err) }()

	if name == nil && description == nil {
		return nil
	}
	if name != nil && *name == "" {
		err = fmt.Errorf("playlist name must not be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "UPDATE playlists SET updated_at = strftime('%s', 'now')"
	args := []interface{}{}
	if name != nil {
		query += ", name = ?"
		args = append(args, *name)
	}
	if description != nil {
		query += ", description = ?"
		args = append(args, *description)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraint(err) {
			err = fmt.Errorf("%w: %s", ErrNameTaken, *name)
			return err
		}
		err = fmt.Errorf("failed to update playlist %d: %w", id, err)
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

// DeletePlaylist removes a playlist; its items cascade.
// Returns ErrNotFound when no playlist has that ID.
func (s *Store) DeletePlaylist(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_playlist", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		err = fmt.Errorf("failed to delete playlist %d: %w", id, err)
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

// ListPlaylistItems returns a playlist's items in order.
// Returns ErrNotFound when the playlist itself does not exist.
func (s *Store) ListPlaylistItems(ctx context.Context, playlistID int64) ([]PlaylistItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_playlist_items", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Distinguish "empty playlist" from "no such playlist"
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlists WHERE id = ?", playlistID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		err = ErrNotFound
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, playlist_id, media_url, order_index, added_at, thumbnail_path
		FROM playlist_items
		WHERE playlist_id = ?
		ORDER BY order_index
	`, playlistID)
	if err != nil {
		err = fmt.Errorf("failed to list playlist items: %w", err)
		return nil, err
	}
	defer rows.Close()

	var items []PlaylistItem
	for rows.Next() {
		item, scanErr := scanPlaylistItem(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		items = append(items, *item)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AddPlaylistItem appends a media URL to a playlist. Adding a URL that is
// already present is a no-op returning the existing item. Returns
// ErrNotFound when the playlist does not exist.
func (s *Store) AddPlaylistItem(ctx context.Context, playlistID int64, mediaURL, thumbnailPath string) (*PlaylistItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_playlist_item", start, err) }()

	if mediaURL == "" {
		err = fmt.Errorf("media URL must not be empty")
		return nil, err
	}

	var item *PlaylistItem
	err = s.withTx("reorder", func(tx *sql.Tx) error {
		var exists int
		if txErr := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlists WHERE id = ?", playlistID).Scan(&exists); txErr != nil {
			return txErr
		}
		if exists == 0 {
			return ErrNotFound
		}

		// New items take the next contiguous index
		result, txErr := tx.ExecContext(ctx, `
			INSERT INTO playlist_items (playlist_id, media_url, order_index, thumbnail_path)
			VALUES (?, ?, (SELECT COUNT(*) FROM playlist_items WHERE playlist_id = ?), ?)
			ON CONFLICT(playlist_id, media_url) DO NOTHING
		`, playlistID, mediaURL, playlistID, nullString(thumbnailPath))
		if txErr != nil {
			return fmt.Errorf("failed to add playlist item: %w", txErr)
		}

		inserted, txErr := result.RowsAffected()
		if txErr != nil {
			return txErr
		}
		if inserted > 0 {
			if txErr = touchPlaylist(ctx, tx, playlistID); txErr != nil {
				return txErr
			}
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, playlist_id, media_url, order_index, added_at, thumbnail_path
			FROM playlist_items WHERE playlist_id = ? AND media_url = ?
		`, playlistID, mediaURL)

		var scanErr error
		item, scanErr = scanPlaylistItem(row)
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RemovePlaylistItem removes a media URL from a playlist and closes the gap
// it leaves. Returns ErrNotFound when the playlist or the URL is absent.
func (s *Store) RemovePlaylistItem(ctx context.Context, playlistID int64, mediaURL string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_playlist_item", start, err) }()

	err = s.withTx("reorder", func(tx *sql.Tx) error {
		var removedIndex int
		txErr := tx.QueryRowContext(ctx,
			"SELECT order_index FROM playlist_items WHERE playlist_id = ? AND media_url = ?",
			playlistID, mediaURL,
		).Scan(&removedIndex)
		if txErr != nil {
			if errors.Is(txErr, sql.ErrNoRows) {
				return ErrNotFound
			}
			return txErr
		}

		if _, txErr = tx.ExecContext(ctx,
			"DELETE FROM playlist_items WHERE playlist_id = ? AND media_url = ?",
			playlistID, mediaURL,
		); txErr != nil {
			return fmt.Errorf("failed to remove playlist item: %w", txErr)
		}

		// Close the gap so indexes stay {0..N-1}
		if _, txErr = tx.ExecContext(ctx,
			"UPDATE playlist_items SET order_index = order_index - 1 WHERE playlist_id = ? AND order_index > ?",
			playlistID, removedIndex,
		); txErr != nil {
			return fmt.Errorf("failed to reindex playlist items: %w", txErr)
		}

		return touchPlaylist(ctx, tx, playlistID)
	})
	return err
}

// MovePlaylistItem moves a media URL to newIndex, shifting the items in
// between by one. Out-of-range targets clamp to the valid range; moving an
// item onto its own position is a no-op. Returns ErrNotFound when the
// playlist or the URL is absent.
func (s *Store) MovePlaylistItem(ctx context.Context, playlistID int64, mediaURL string, newIndex int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("move_playlist_item", start, err) }()

	err = s.withTx("reorder", func(tx *sql.Tx) error {
		var count int
		txErr := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM playlist_items WHERE playlist_id = ?", playlistID,
		).Scan(&count)
		if txErr != nil {
			return txErr
		}
		if count == 0 {
			return ErrNotFound
		}

		var oldIndex int
		txErr = tx.QueryRowContext(ctx,
			"SELECT order_index FROM playlist_items WHERE playlist_id = ? AND media_url = ?",
			playlistID, mediaURL,
		).Scan(&oldIndex)
		if txErr != nil {
			if errors.Is(txErr, sql.ErrNoRows) {
				return ErrNotFound
			}
			return txErr
		}

		// Clamp the target into the valid range
		if newIndex < 0 {
			newIndex = 0
		}
		if newIndex > count-1 {
			newIndex = count - 1
		}

		if newIndex == oldIndex {
			return nil
		}

		// Park the moved item outside the range, shift the span, then drop
		// it into place.
		if _, txErr = tx.ExecContext(ctx,
			"UPDATE playlist_items SET order_index = -1 WHERE playlist_id = ? AND media_url = ?",
			playlistID, mediaURL,
		); txErr != nil {
			return fmt.Errorf("failed to move playlist item: %w", txErr)
		}

		if oldIndex < newIndex {
			_, txErr = tx.ExecContext(ctx, `
				UPDATE playlist_items SET order_index = order_index - 1
				WHERE playlist_id = ? AND order_index > ? AND order_index <= ?
			`, playlistID, oldIndex, newIndex)
		} else {
			_, txErr = tx.ExecContext(ctx, `
				UPDATE playlist_items SET order_index = order_index + 1
				WHERE playlist_id = ? AND order_index >= ? AND order_index < ?
			`, playlistID, newIndex, oldIndex)
		}
		if txErr != nil {
			return fmt.Errorf("failed to shift playlist items: %w", txErr)
		}

		if _, txErr = tx.ExecContext(ctx,
			"UPDATE playlist_items SET order_index = ? WHERE playlist_id = ? AND media_url = ?",
			newIndex, playlistID, mediaURL,
		); txErr != nil {
			return fmt.Errorf("failed to place playlist item: %w", txErr)
		}

		return touchPlaylist(ctx, tx, playlistID)
	})
	return err
}

// touchPlaylist refreshes a playlist's updated_at after a structural change.
func touchPlaylist(ctx context.Context, tx *sql.Tx, playlistID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE playlists SET updated_at = strftime('%s', 'now') WHERE id = ?", playlistID)
	if err != nil {
		return fmt.Errorf("failed to touch playlist %d: %w", playlistID, err)
	}
	return nil
}

func scanPlaylistItem(row rowScanner) (*PlaylistItem, error) {
	var item PlaylistItem
	var addedAt int64
	var thumbnail sql.NullString

	if err := row.Scan(
		&item.ID, &item.PlaylistID, &item.MediaURL,
		&item.OrderIndex, &addedAt, &thumbnail,
	); err != nil {
		return nil, fmt.Errorf("failed to scan playlist item: %w", err)
	}

	item.AddedAt = time.Unix(addedAt, 0)
	if thumbnail.Valid {
		item.ThumbnailPath = thumbnail.String
	}
	return &item, nil
}
