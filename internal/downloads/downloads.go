package downloads

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"media-index/internal/logging"
	"media-index/internal/metrics"
	"media-index/internal/store"
)

const (
	defaultMaxCacheBytes = 10 << 30 // 10 GiB
	defaultMaxFileBytes  = 50 << 20 // 50 MiB

	publicBase = "/downloads/"
)

// ErrTooLarge reports content that exceeds the single-file admission limit.
var ErrTooLarge = errors.New("file exceeds download cache size limit")

// cacheableExtensions are the extensions kept as-is in cache filenames.
// Anything else gets the default; CDN URLs frequently have no extension
// at all.
var cacheableExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// Config bounds the cache. Zero values select the defaults.
type Config struct {
	MaxCacheBytes int64
	MaxFileBytes  int64
}

// Manager owns the on-disk download cache: content files under a cache
// directory plus the ledger rows in the store. Admission is capped per file,
// total size is capped by evicting the least recently accessed entries
// first. The remote fetch itself is the caller's problem; the manager only
// ever sees an io.Reader.
type Manager struct {
	dir           string
	store         *store.Store
	maxCacheBytes int64
	maxFileBytes  int64

	// mu serializes admissions and maintenance so eviction decisions see a
	// stable ledger. Reads (Open, Has, Stats) go straight to the store.
	mu sync.Mutex
}

// New creates a Manager rooted at dir, creating the directory if needed.
func New(dir string, st *store.Store, cfg Config) (*Manager, error) {
	if cfg.MaxCacheBytes <= 0 {
		cfg.MaxCacheBytes = defaultMaxCacheBytes
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download cache directory: %w", err)
	}

	m := &Manager{
		dir:           dir,
		store:         st,
		maxCacheBytes: cfg.MaxCacheBytes,
		maxFileBytes:  cfg.MaxFileBytes,
	}
	m.refreshGauges(context.Background())

	logging.Debug("Download cache at %s (capacity %d bytes, per-file limit %d bytes)",
		dir, m.maxCacheBytes, m.maxFileBytes)
	return m, nil
}

// Dir returns the cache directory, for mounting as a static file root.
func (m *Manager) Dir() string {
	return m.dir
}

// CacheFilename derives the on-disk name for a URL: the first 12 hex chars
// of the URL's MD5 plus the URL's extension. The digest covers the whole
// URL including any query string; the extension comes from the path part
// only.
func CacheFilename(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:12] + extensionOf(url)
}

// PublicPath returns the URL path a cached filename is served under.
func PublicPath(filename string) string {
	return publicBase + filename
}

func extensionOf(url string) string {
	trimmed, _, _ := strings.Cut(url, "?")
	ext := strings.ToLower(path.Ext(trimmed))
	if _, ok := cacheableExtensions[ext]; !ok {
		return ".mp4"
	}
	return ext
}

// Store admits the content read from r into the cache under url's derived
// filename, evicting older entries if the capacity cap requires it. Content
// longer than the per-file limit is rejected with ErrTooLarge and nothing
// is admitted. Re-storing a known URL replaces its content and resets the
// verified flag.
func (m *Manager) Store(ctx context.Context, url string, r io.Reader) (*store.DownloadEntry, error) {
	if url == "" {
		return nil, fmt.Errorf("download url must not be empty")
	}

	// Spool outside the lock; the unique temp name keeps concurrent
	// admissions apart.
	tmp, err := os.CreateTemp(m.dir, ".spool-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	tmpPath := tmp.Name()

	size, copyErr := io.Copy(tmp, io.LimitReader(r, m.maxFileBytes+1))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to spool download: %w", errors.Join(copyErr, closeErr))
	}
	if size > m.maxFileBytes {
		os.Remove(tmpPath)
		metrics.DownloadCacheRejected.Inc()
		logging.Debug("Rejecting download of %s: exceeds %d byte limit", url, m.maxFileBytes)
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, m.maxFileBytes)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureCapacity(ctx, size); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	filename := CacheFilename(url)
	dest := filepath.Join(m.dir, filename)
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move download into cache: %w", err)
	}

	if err := m.store.RecordDownload(ctx, url, filename, size); err != nil {
		os.Remove(dest)
		return nil, err
	}

	m.refreshGauges(ctx)
	logging.Info("Cached download %s (%d bytes) for %s", filename, size, url)

	return m.store.GetDownload(ctx, url)
}

// Open returns the cached file for a URL and marks it as just accessed.
// A ledger row whose file has vanished from disk is dropped on the spot and
// reported as ErrNotFound. The caller closes the file.
func (m *Manager) Open(ctx context.Context, url string) (*os.File, *store.DownloadEntry, error) {
	entry, err := m.store.GetDownload(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(m.dir, entry.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			if delErr := m.store.DeleteDownload(ctx, url); delErr != nil {
				logging.Warn("Failed to drop orphaned download row for %s: %v", url, delErr)
			}
			return nil, nil, fmt.Errorf("%w: cached file missing for %s", store.ErrNotFound, url)
		}
		return nil, nil, fmt.Errorf("failed to open cached download: %w", err)
	}

	if err := m.store.TouchDownload(ctx, url); err != nil {
		logging.Warn("Failed to touch download %s: %v", url, err)
	}

	return f, entry, nil
}

// Has reports whether a URL is cached with its file present on disk.
func (m *Manager) Has(ctx context.Context, url string) (bool, error) {
	entry, err := m.store.GetDownload(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filepath.Join(m.dir, entry.Filename)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// VerifyResult reports what a reconciliation pass did.
type VerifyResult struct {
	Verified     int `json:"verified"`
	RowsDropped  int `json:"rowsDropped"`
	FilesRemoved int `json:"filesRemoved"`
}

// Verify reconciles the ledger against the cache directory in both
// directions. Rows whose file is present at the recorded size are marked
// verified; rows whose file is missing or has the wrong size are dropped
// along with the file; files the ledger does not know about are removed.
func (m *Manager) Verify(ctx context.Context) (VerifyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result VerifyResult

	entries, err := m.store.ListDownloads(ctx)
	if err != nil {
		return result, err
	}

	ledger := make(map[string]struct{}, len(entries))

	tx, err := m.store.BeginBatch()
	if err != nil {
		return result, err
	}
	var txErr error
	for _, entry := range entries {
		ledger[entry.Filename] = struct{}{}

		filePath := filepath.Join(m.dir, entry.Filename)
		info, statErr := os.Stat(filePath)
		switch {
		case os.IsNotExist(statErr):
			txErr = m.store.DeleteDownloadTx(ctx, tx, entry.URL)
			result.RowsDropped++
		case statErr != nil:
			txErr = statErr
		case info.Size() != entry.SizeBytes:
			// Truncated or corrupt content is worse than a miss
			if rmErr := os.Remove(filePath); rmErr != nil {
				logging.Warn("Failed to remove corrupt cache file %s: %v", entry.Filename, rmErr)
			} else {
				result.FilesRemoved++
			}
			txErr = m.store.DeleteDownloadTx(ctx, tx, entry.URL)
			result.RowsDropped++
		default:
			txErr = m.store.MarkDownloadVerifiedTx(ctx, tx, entry.URL, true)
			result.Verified++
		}
		if txErr != nil {
			break
		}
	}
	if err := m.store.EndBatch(tx, txErr); err != nil {
		return VerifyResult{}, fmt.Errorf("download verification failed: %w", err)
	}

	// Disk side. Dotfiles are in-flight spools and stay.
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return result, fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if _, ok := ledger[de.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, de.Name())); err != nil {
			logging.Warn("Failed to remove stray cache file %s: %v", de.Name(), err)
			continue
		}
		result.FilesRemoved++
	}

	m.refreshGauges(ctx)
	logging.Info("Download cache verified: %d verified, %d rows dropped, %d files removed",
		result.Verified, result.RowsDropped, result.FilesRemoved)
	return result, nil
}

// Invalidate drops a single URL's row and file, typically after a playback
// failure showed the cached copy to be bad. Unknown URLs are a no-op.
func (m *Manager) Invalidate(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.store.GetDownload(ctx, url)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(m.dir, entry.Filename)); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove invalidated file %s: %v", entry.Filename, err)
	}
	if err := m.store.DeleteDownload(ctx, url); err != nil {
		return err
	}

	m.refreshGauges(ctx)
	logging.Info("Invalidated cached download for %s", url)
	return nil
}

// InvalidateUnverified drops every row that never passed verification,
// along with its file, and returns how many were dropped.
func (m *Manager) InvalidateUnverified(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.store.ListDownloads(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := m.store.BeginBatch()
	if err != nil {
		return 0, err
	}
	var txErr error
	dropped := 0
	for _, entry := range entries {
		if entry.Verified {
			continue
		}
		if rmErr := os.Remove(filepath.Join(m.dir, entry.Filename)); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Failed to remove unverified file %s: %v", entry.Filename, rmErr)
		}
		if txErr = m.store.DeleteDownloadTx(ctx, tx, entry.URL); txErr != nil {
			break
		}
		dropped++
	}
	if err := m.store.EndBatch(tx, txErr); err != nil {
		return 0, fmt.Errorf("failed to drop unverified downloads: %w", err)
	}

	m.refreshGauges(ctx)
	if dropped > 0 {
		logging.Info("Dropped %d unverified cached downloads", dropped)
	}
	return dropped, nil
}

// ClearResult reports what a full cache clear removed.
type ClearResult struct {
	FilesDeleted int   `json:"filesDeleted"`
	BytesFreed   int64 `json:"bytesFreed"`
	RowsCleared  int64 `json:"rowsCleared"`
}

// Clear removes every file in the cache directory and empties the ledger.
func (m *Manager) Clear(ctx context.Context) (ClearResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result ClearResult

	dirEntries, err := os.ReadDir(m.dir)
	if err != nil && !os.IsNotExist(err) {
		return result, fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, infoErr := de.Info()
		if infoErr != nil {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, de.Name())); err != nil {
			logging.Warn("Failed to remove cache file %s: %v", de.Name(), err)
			continue
		}
		result.FilesDeleted++
		result.BytesFreed += info.Size()
	}

	cleared, err := m.store.ClearDownloads(ctx)
	if err != nil {
		return result, err
	}
	result.RowsCleared = cleared

	m.refreshGauges(ctx)
	logging.Info("Cleared download cache: %d files, %d bytes freed", result.FilesDeleted, result.BytesFreed)
	return result, nil
}

// Stats describes the cache for the admin endpoint.
type Stats struct {
	Files           int64 `json:"files"`
	VerifiedFiles   int64 `json:"verifiedFiles"`
	UnverifiedFiles int64 `json:"unverifiedFiles"`
	TotalBytes      int64 `json:"totalBytes"`
	MaxCacheBytes   int64 `json:"maxCacheBytes"`
	MaxFileBytes    int64 `json:"maxFileBytes"`
}

// Stats summarizes the ledger plus the configured limits.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	dbStats, err := m.store.GetDownloadStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Files:           dbStats.Files,
		VerifiedFiles:   dbStats.VerifiedFiles,
		UnverifiedFiles: dbStats.Files - dbStats.VerifiedFiles,
		TotalBytes:      dbStats.TotalBytes,
		MaxCacheBytes:   m.maxCacheBytes,
		MaxFileBytes:    m.maxFileBytes,
	}, nil
}

// ensureCapacity evicts least recently accessed entries until incoming
// bytes fit under the capacity cap. Caller holds m.mu.
func (m *Manager) ensureCapacity(ctx context.Context, incoming int64) error {
	stats, err := m.store.GetDownloadStats(ctx)
	if err != nil {
		return err
	}
	if stats.TotalBytes+incoming <= m.maxCacheBytes {
		return nil
	}
	needed := stats.TotalBytes + incoming - m.maxCacheBytes

	entries, err := m.store.ListDownloads(ctx)
	if err != nil {
		return err
	}

	tx, err := m.store.BeginBatch()
	if err != nil {
		return err
	}
	var txErr error
	var freed int64
	evicted := 0
	for _, entry := range entries {
		if freed >= needed {
			break
		}
		if rmErr := os.Remove(filepath.Join(m.dir, entry.Filename)); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Failed to remove evicted file %s: %v", entry.Filename, rmErr)
		}
		if txErr = m.store.DeleteDownloadTx(ctx, tx, entry.URL); txErr != nil {
			break
		}
		freed += entry.SizeBytes
		evicted++
		metrics.DownloadCacheEvictions.Inc()
	}
	if err := m.store.EndBatch(tx, txErr); err != nil {
		return fmt.Errorf("download eviction failed: %w", err)
	}

	if evicted > 0 {
		logging.Info("Evicted %d cached downloads (%d bytes) to make room", evicted, freed)
	}
	return nil
}

func (m *Manager) refreshGauges(ctx context.Context) {
	stats, err := m.store.GetDownloadStats(ctx)
	if err != nil {
		logging.Debug("Failed to refresh download cache gauges: %v", err)
		return
	}
	metrics.DownloadCacheBytes.Set(float64(stats.TotalBytes))
	metrics.DownloadCacheFiles.Set(float64(stats.Files))
}
