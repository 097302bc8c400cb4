package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-index/internal/metrics"
)

// UpsertFile inserts or updates a file record keyed by path, then refreshes
// the record's ID and timestamps from the stored row. Last writer wins under
// the path uniqueness constraint.
func (s *Store) UpsertFile(ctx context.Context, rec *FileRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_file", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO files (path, hash, size, mtime, duration, directory, filename, kind, thumbnail_path, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		hash = excluded.hash,
		size = excluded.size,
		mtime = excluded.mtime,
		duration = excluded.duration,
		directory = excluded.directory,
		filename = excluded.filename,
		kind = excluded.kind,
		thumbnail_path = excluded.thumbnail_path,
		updated_at = strftime('%s', 'now')
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.Path,
		rec.Hash,
		rec.Size,
		rec.MTimeNanos,
		nullFloat(rec.Duration),
		rec.Directory,
		rec.Filename,
		rec.Kind,
		nullString(rec.ThumbnailPath),
	)
	if err != nil {
		err = fmt.Errorf("failed to upsert file %s: %w", rec.Path, err)
		return err
	}

	var createdAt, updatedAt int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM files WHERE path = ?",
		rec.Path,
	).Scan(&rec.ID, &createdAt, &updatedAt)
	if err != nil {
		err = fmt.Errorf("failed to read back file %s: %w", rec.Path, err)
		return err
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return nil
}

// GetFileByPath retrieves a single file record by path.
// Returns ErrNotFound when no record exists.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_file_by_path", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, hash, size, mtime, duration, directory, filename, kind, thumbnail_path, created_at, updated_at
		FROM files WHERE path = ?
	`, path)

	rec, scanErr := scanFileRecord(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		err = scanErr
		return nil, err
	}
	return rec, nil
}

// ListFilesByDirectory returns all file records in a directory, ordered by
// filename.
func (s *Store) ListFilesByDirectory(ctx context.Context, directory string) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_files_by_directory", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, hash, size, mtime, duration, directory, filename, kind, thumbnail_path, created_at, updated_at
		FROM files WHERE directory = ?
		ORDER BY filename COLLATE NOCASE
	`, directory)
	if err != nil {
		err = fmt.Errorf("failed to list files in %s: %w", directory, err)
		return nil, err
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, scanErr := scanFileRecord(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan file row: %w", scanErr)
			return nil, err
		}
		records = append(records, *rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListFilePaths returns every indexed path. Used by the sweep to reconcile
// records against the filesystem.
func (s *Store) ListFilePaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_file_paths", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to list file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// DeleteFiles removes the given paths in a single sweep transaction and
// returns the number of rows removed.
func (s *Store) DeleteFiles(ctx context.Context, paths []string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_files", start, err) }()

	if len(paths) == 0 {
		return 0, nil
	}

	var removed int64
	err = s.withTx("sweep", func(tx *sql.Tx) error {
		// SQLite caps bound parameters per statement, so delete in chunks
		const chunkSize = 500
		for i := 0; i < len(paths); i += chunkSize {
			end := i + chunkSize
			if end > len(paths) {
				end = len(paths)
			}
			chunk := paths[i:end]

			placeholders := make([]byte, 0, 2*len(chunk))
			args := make([]interface{}, 0, len(chunk))
			for j, p := range chunk {
				if j > 0 {
					placeholders = append(placeholders, ',')
				}
				placeholders = append(placeholders, '?')
				args = append(args, p)
			}

			result, execErr := tx.ExecContext(ctx,
				"DELETE FROM files WHERE path IN ("+string(placeholders)+")", args...)
			if execErr != nil {
				return fmt.Errorf("failed to delete files: %w", execErr)
			}

			rows, _ := result.RowsAffected()
			removed += rows
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_files").Observe(float64(removed))
	}
	return removed, nil
}

// DistinctHashes returns the set of content hashes present in the index.
// Empty placeholder hashes are excluded. Used by the sweep to find orphaned
// thumbnail assets.
func (s *Store) DistinctHashes(ctx context.Context) (map[string]struct{}, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("distinct_hashes", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT hash FROM files WHERE hash != ''")
	if err != nil {
		return nil, fmt.Errorf("failed to list hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err = rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFileRecord(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var duration sql.NullFloat64
	var thumbnail sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&rec.ID, &rec.Path, &rec.Hash, &rec.Size, &rec.MTimeNanos,
		&duration, &rec.Directory, &rec.Filename, &rec.Kind,
		&thumbnail, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if duration.Valid {
		d := duration.Float64
		rec.Duration = &d
	}
	if thumbnail.Valid {
		rec.ThumbnailPath = thumbnail.String
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
