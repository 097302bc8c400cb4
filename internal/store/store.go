package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// Store manages all persistent state for the media index: file records,
// history, playlists, and the supplementary response and download caches.
type Store struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	txStart time.Time // Track batch transaction start time for metrics
}

// New creates a new Store instance.
// IMPORTANT: dbPath should be the full path to the database FILE (e.g., "/database/index.db"),
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Store database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseStorePermissions(dbPath); err != nil {
		logging.Warn("Store permission diagnostics: %v", err)
	}

	// WAL mode and other optimizations; busy_timeout helps prevent
	// "database is locked" errors; foreign_keys enables the playlist
	// ownership cascade.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Allow multiple readers for concurrent browse/resolve traffic
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Store initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- File records: one row per indexed media file, path is the identity key.
	-- mtime is stored as unix nanoseconds so the (size, mtime) validity tuple
	-- compares with exact equality.
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		hash TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		mtime INTEGER NOT NULL,
		duration REAL,
		directory TEXT NOT NULL,
		filename TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'other',
		thumbnail_path TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_files_directory ON files(directory);
	CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);
	CREATE INDEX IF NOT EXISTS idx_files_filename ON files(filename COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_files_kind ON files(kind);

	-- History: one row per distinct (type, value, platform, service).
	-- last_used is unix nanoseconds for unambiguous recency ordering.
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		service TEXT NOT NULL DEFAULT '',
		last_used INTEGER NOT NULL,
		use_count INTEGER NOT NULL DEFAULT 1,
		UNIQUE(type, value, platform, service)
	);

	CREATE INDEX IF NOT EXISTS idx_history_type_used ON history(type, last_used DESC);

	-- Playlists and their ordered items. Deleting a playlist cascades to its
	-- items (foreign_keys is enabled in the connection string).
	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS playlist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		playlist_id INTEGER NOT NULL,
		media_url TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		thumbnail_path TEXT,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		UNIQUE(playlist_id, media_url)
	);

	CREATE INDEX IF NOT EXISTS idx_playlist_items_order ON playlist_items(playlist_id, order_index);

	-- Upstream API response cache (TTL'd). expires_at is unix nanoseconds.
	CREATE TABLE IF NOT EXISTS api_cache (
		cache_key TEXT PRIMARY KEY,
		response_data TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);

	-- Download cache ledger; the files live on disk under the cache dir.
	-- last_accessed is unix nanoseconds for unambiguous LRU ordering.
	CREATE TABLE IF NOT EXISTS downloads (
		url TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_accessed INTEGER NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_accessed ON downloads(last_accessed);
	`

	_, err = s.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	// Run migrations
	err = s.runMigrations(ctx)
	return err
}

// runMigrations applies database schema migrations
func (s *Store) runMigrations(ctx context.Context) error {
	// Migration 1: Add duration column to files if it doesn't exist
	// (databases created before duration probing was added)
	var durationExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('files')
		WHERE name='duration'
	`).Scan(&durationExists)

	if err != nil {
		return fmt.Errorf("failed to check for duration column: %w", err)
	}

	if !durationExists {
		logging.Info("Migrating database: adding duration column to files table")

		_, err = s.db.ExecContext(ctx, `
			ALTER TABLE files ADD COLUMN duration REAL
		`)
		if err != nil {
			return fmt.Errorf("failed to add duration column: %w", err)
		}

		logging.Info("Migration complete: duration column added")
	}

	// Migration 2: Add thumbnail_path column to playlist_items if it doesn't
	// exist (databases created before playlist thumbnails were added)
	var thumbExists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('playlist_items')
		WHERE name='thumbnail_path'
	`).Scan(&thumbExists)

	if err != nil {
		return fmt.Errorf("failed to check for thumbnail_path column: %w", err)
	}

	if !thumbExists {
		logging.Info("Migrating database: adding thumbnail_path column to playlist_items table")

		_, err = s.db.ExecContext(ctx, `
			ALTER TABLE playlist_items ADD COLUMN thumbnail_path TEXT
		`)
		if err != nil {
			return fmt.Errorf("failed to add thumbnail_path column: %w", err)
		}

		logging.Info("Migration complete: thumbnail_path column added")
	}

	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is still usable. Health checks call
// this to decide readiness.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// BeginBatch starts a transaction for batch operations (bulk upserts during
// scans, sweep deletions). The caller is responsible for calling EndBatch
// when done.
// Note: Acquires write lock only during transaction begin, not for entire duration.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	// Use shorter-lived lock - only protect transaction creation
	s.mu.Lock()
	txStart := time.Now()

	// Use background context - transaction lifetime is managed by EndBatch,
	// not a timeout. A timeout context here would cancel the transaction
	// the moment this function returns.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock() // Release lock immediately after transaction starts

	if err != nil {
		return nil, err
	}

	// Batch transactions come from the single background indexer, so a
	// struct field is sufficient to carry the start time to EndBatch.
	s.txStart = txStart

	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	// Record transaction duration (txStart set by BeginBatch)
	duration := time.Since(s.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// withTx runs fn inside a transaction and commits or rolls back based on its
// error. label names the transaction type for the duration metric. Unlike
// BeginBatch/EndBatch this is safe for concurrent callers, so the compound
// playlist and sweep mutations use it.
func (s *Store) withTx(label string, fn func(*sql.Tx) error) error {
	start := time.Now()

	s.mu.Lock()
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(tx)
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues(label).Observe(duration)
	return tx.Commit()
}

// GetStats returns point-in-time library statistics. Implements
// metrics.StatsProvider; errors are logged and leave the affected fields
// zero rather than failing the collection pass.
func (s *Store) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'image' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind NOT IN ('video', 'image') THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT directory)
		FROM files
	`).Scan(&stats.VideoFiles, &stats.ImageFiles, &stats.OtherFiles, &stats.Directories)
	if err != nil {
		logging.Error("stats: files query failed: %v", err)
		return stats
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&stats.HistoryEntries)
	if err != nil {
		logging.Error("stats: history query failed: %v", err)
		return stats
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM playlists),
			(SELECT COUNT(*) FROM playlist_items)
	`).Scan(&stats.Playlists, &stats.PlaylistItems)
	if err != nil {
		logging.Error("stats: playlists query failed: %v", err)
		return stats
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM downloads
	`).Scan(&stats.DownloadFiles, &stats.DownloadBytes)
	if err != nil {
		logging.Error("stats: downloads query failed: %v", err)
	}

	return stats
}

// Vacuum optimizes the database.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics refreshes connection and file-size gauges. Called
// periodically from the maintenance loop.
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for label, path := range map[string]string{
		"main": s.dbPath,
		"wal":  s.dbPath + "-wal",
		"shm":  s.dbPath + "-shm",
	} {
		if info, err := os.Stat(path); err == nil {
			metrics.DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		}
	}
}

// diagnoseStorePermissions checks database directory and file permissions
func diagnoseStorePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	// Check directory permissions
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile) // Explicitly ignore cleanup error
	logging.Debug("Database directory is writable")

	// Check main database file
	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// WAL sidecar files must also be writable or every write will fail
	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		info, err := os.Stat(sidecar)
		if err != nil {
			continue
		}
		logging.Debug("Sidecar file exists: %s (mode: %v, size: %d bytes)", sidecar, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Sidecar file is read-only! Mode: %v - this will cause write failures", info.Mode())
			if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
				logging.Error("Failed to fix sidecar file permissions: %v", chmodErr)
			} else {
				logging.Info("Fixed sidecar file permissions for %s", sidecar)
			}
		}
	}

	return nil
}
