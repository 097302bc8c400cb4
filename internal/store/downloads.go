package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordDownload inserts or refreshes a download cache ledger row. A re-download
// of a known URL replaces the filename and size and resets the verified flag;
// either way the row becomes the most recently accessed.
func (s *Store) RecordDownload(ctx context.Context, url, filename string, sizeBytes int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_download", start, err) }()

	if url == "" || filename == "" {
		err = fmt.Errorf("download url and filename must not be empty")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO downloads (url, filename, size_bytes, last_accessed, verified)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(url) DO UPDATE SET
			filename = excluded.filename,
			size_bytes = excluded.size_bytes,
			last_accessed = excluded.last_accessed,
			verified = 0
	`, url, filename, sizeBytes, time.Now().UnixNano())
	if err != nil {
		err = fmt.Errorf("failed to record download: %w", err)
		return err
	}
	return nil
}

// GetDownload returns the ledger row for a URL, or ErrNotFound.
func (s *Store) GetDownload(ctx context.Context, url string) (*DownloadEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_download", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT url, filename, size_bytes, created_at, last_accessed, verified
		FROM downloads WHERE url = ?
	`, url)

	entry, scanErr := scanDownloadEntry(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		err = scanErr
		return nil, err
	}
	return entry, nil
}

// TouchDownload marks a URL as just served, moving it to the fresh end of
// the eviction order. Returns ErrNotFound for an unknown URL.
func (s *Store) TouchDownload(ctx context.Context, url string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("touch_download", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"UPDATE downloads SET last_accessed = ? WHERE url = ?",
		time.Now().UnixNano(), url)
	if err != nil {
		err = fmt.Errorf("failed to touch download: %w", err)
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

// MarkDownloadVerified sets a URL's size-verification flag.
// Returns ErrNotFound for an unknown URL.
func (s *Store) MarkDownloadVerified(ctx context.Context, url string, verified bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_download_verified", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = markDownloadVerified(ctx, s.db, url, verified)
	return err
}

// MarkDownloadVerifiedTx is MarkDownloadVerified inside a caller-managed
// batch transaction.
func (s *Store) MarkDownloadVerifiedTx(ctx context.Context, tx *sql.Tx, url string, verified bool) error {
	return markDownloadVerified(ctx, tx, url, verified)
}

// execer covers *sql.DB and *sql.Tx for statements shared between direct and
// batch paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func markDownloadVerified(ctx context.Context, db execer, url string, verified bool) error {
	result, err := db.ExecContext(ctx,
		"UPDATE downloads SET verified = ? WHERE url = ?", verified, url)
	if err != nil {
		return fmt.Errorf("failed to mark download verified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDownloads returns every ledger row, least recently accessed first.
// That is eviction order: callers reclaiming space walk the slice from the
// front.
func (s *Store) ListDownloads(ctx context.Context) ([]DownloadEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_downloads", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, filename, size_bytes, created_at, last_accessed, verified
		FROM downloads
		ORDER BY last_accessed ASC
	`)
	if err != nil {
		err = fmt.Errorf("failed to list downloads: %w", err)
		return nil, err
	}
	defer rows.Close()

	var entries []DownloadEntry
	for rows.Next() {
		entry, scanErr := scanDownloadEntry(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		entries = append(entries, *entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteDownload removes a URL's ledger row. Deleting an unknown URL is a
// no-op; eviction and invalidation both race against concurrent clears.
func (s *Store) DeleteDownload(ctx context.Context, url string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_download", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = deleteDownload(ctx, s.db, url)
	return err
}

// DeleteDownloadTx is DeleteDownload inside a caller-managed batch
// transaction.
func (s *Store) DeleteDownloadTx(ctx context.Context, tx *sql.Tx, url string) error {
	return deleteDownload(ctx, tx, url)
}

func deleteDownload(ctx context.Context, db execer, url string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM downloads WHERE url = ?", url); err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return nil
}

// ClearDownloads empties the ledger and returns how many rows were removed.
// The caller is responsible for removing the files themselves.
func (s *Store) ClearDownloads(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_downloads", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM downloads")
	if err != nil {
		err = fmt.Errorf("failed to clear downloads: %w", err)
		return 0, err
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return cleared, nil
}

// GetDownloadStats summarizes the ledger for capacity decisions and the
// stats endpoint.
func (s *Store) GetDownloadStats(ctx context.Context) (DownloadStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("download_stats", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats DownloadStats
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(size_bytes), 0),
			COALESCE(SUM(CASE WHEN verified THEN 1 ELSE 0 END), 0)
		FROM downloads
	`).Scan(&stats.Files, &stats.TotalBytes, &stats.VerifiedFiles)
	if err != nil {
		err = fmt.Errorf("failed to get download stats: %w", err)
		return DownloadStats{}, err
	}
	return stats, nil
}

func scanDownloadEntry(row rowScanner) (*DownloadEntry, error) {
	var entry DownloadEntry
	var createdAt, lastAccessed int64

	if err := row.Scan(
		&entry.URL, &entry.Filename, &entry.SizeBytes,
		&createdAt, &lastAccessed, &entry.Verified,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan download row: %w", err)
	}

	entry.CreatedAt = time.Unix(createdAt, 0)
	entry.LastAccessed = time.Unix(0, lastAccessed)
	return &entry, nil
}
