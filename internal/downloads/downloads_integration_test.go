package downloads

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-index/internal/store"
)

func setupTestManager(t testing.TB, cfg Config) (*Manager, *store.Store) {
	t.Helper()

	base := t.TempDir()

	st, err := store.New(context.Background(), filepath.Join(base, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})

	m, err := New(filepath.Join(base, "dl"), st, cfg)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m, st
}

func payload(n int) string {
	return strings.Repeat("x", n)
}

func TestStoreAndOpen(t *testing.T) {
	m, _ := setupTestManager(t, Config{})
	ctx := context.Background()

	url := "https://cdn.example.com/v/clip.mp4"
	content := "some video bytes"

	entry, err := m.Store(ctx, url, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if entry.Filename != CacheFilename(url) {
		t.Errorf("Filename = %s, want %s", entry.Filename, CacheFilename(url))
	}
	if entry.SizeBytes != int64(len(content)) {
		t.Errorf("SizeBytes = %d, want %d", entry.SizeBytes, len(content))
	}
	if entry.Verified {
		t.Error("Fresh download should not be verified")
	}

	f, opened, err := m.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("Cached content = %q, want %q", data, content)
	}
	if opened.URL != url {
		t.Errorf("Entry URL = %s, want %s", opened.URL, url)
	}
}

func TestStoreReplacesExistingURL(t *testing.T) {
	m, st := setupTestManager(t, Config{})
	ctx := context.Background()

	url := "https://cdn.example.com/v/clip.mp4"

	if _, err := m.Store(ctx, url, strings.NewReader("short")); err != nil {
		t.Fatalf("First store failed: %v", err)
	}
	if _, err := m.Verify(ctx); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	entry, err := m.Store(ctx, url, strings.NewReader("replacement content"))
	if err != nil {
		t.Fatalf("Second store failed: %v", err)
	}
	if entry.SizeBytes != int64(len("replacement content")) {
		t.Errorf("SizeBytes = %d, want replacement size", entry.SizeBytes)
	}
	if entry.Verified {
		t.Error("Re-download must reset the verified flag")
	}

	stats, err := st.GetDownloadStats(ctx)
	if err != nil {
		t.Fatalf("GetDownloadStats failed: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1 after replacing the same URL", stats.Files)
	}

	f, _, err := m.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "replacement content" {
		t.Errorf("Content = %q, want replacement content", data)
	}
}

func TestStoreRejectsOversize(t *testing.T) {
	m, _ := setupTestManager(t, Config{MaxFileBytes: 64})
	ctx := context.Background()

	url := "https://cdn.example.com/v/big.mp4"

	_, err := m.Store(ctx, url, strings.NewReader(payload(100)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Store of oversized content = %v, want ErrTooLarge", err)
	}

	has, err := m.Has(ctx, url)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Rejected download must not be admitted")
	}

	// The spool file must not linger either
	entries, err := os.ReadDir(m.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Cache directory has %d entries after rejection, want 0", len(entries))
	}
}

func TestStoreEvictsLRU(t *testing.T) {
	m, _ := setupTestManager(t, Config{MaxCacheBytes: 300, MaxFileBytes: 200})
	ctx := context.Background()

	urlA := "https://cdn.example.com/v/a.mp4"
	urlB := "https://cdn.example.com/v/b.mp4"
	urlC := "https://cdn.example.com/v/c.mp4"

	if _, err := m.Store(ctx, urlA, strings.NewReader(payload(120))); err != nil {
		t.Fatalf("Store a failed: %v", err)
	}
	if _, err := m.Store(ctx, urlB, strings.NewReader(payload(120))); err != nil {
		t.Fatalf("Store b failed: %v", err)
	}

	// Touch a so b becomes the eviction candidate
	f, _, err := m.Open(ctx, urlA)
	if err != nil {
		t.Fatalf("Open a failed: %v", err)
	}
	f.Close()

	if _, err := m.Store(ctx, urlC, strings.NewReader(payload(120))); err != nil {
		t.Fatalf("Store c failed: %v", err)
	}

	for url, want := range map[string]bool{urlA: true, urlB: false, urlC: true} {
		has, err := m.Has(ctx, url)
		if err != nil {
			t.Fatalf("Has(%s) failed: %v", url, err)
		}
		if has != want {
			t.Errorf("Has(%s) = %v, want %v", url, has, want)
		}
	}

	if _, err := os.Stat(filepath.Join(m.Dir(), CacheFilename(urlB))); !os.IsNotExist(err) {
		t.Error("Evicted file still on disk")
	}
}

func TestOpenUnknownURL(t *testing.T) {
	m, _ := setupTestManager(t, Config{})

	_, _, err := m.Open(context.Background(), "https://cdn.example.com/v/nope.mp4")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Open of unknown URL = %v, want ErrNotFound", err)
	}
}

func TestOpenMissingFileDropsRow(t *testing.T) {
	m, st := setupTestManager(t, Config{})
	ctx := context.Background()

	url := "https://cdn.example.com/v/clip.mp4"
	if _, err := m.Store(ctx, url, strings.NewReader("bytes")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := os.Remove(filepath.Join(m.Dir(), CacheFilename(url))); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, _, err := m.Open(ctx, url); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Open with missing file = %v, want ErrNotFound", err)
	}
	if _, err := st.GetDownload(ctx, url); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Orphaned row still present after Open: %v", err)
	}
}

func TestOpenRefreshesRecency(t *testing.T) {
	m, st := setupTestManager(t, Config{})
	ctx := context.Background()

	urlA := "https://cdn.example.com/v/a.mp4"
	urlB := "https://cdn.example.com/v/b.mp4"
	if _, err := m.Store(ctx, urlA, strings.NewReader("a")); err != nil {
		t.Fatalf("Store a failed: %v", err)
	}
	if _, err := m.Store(ctx, urlB, strings.NewReader("b")); err != nil {
		t.Fatalf("Store b failed: %v", err)
	}

	f, _, err := m.Open(ctx, urlA)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	f.Close()

	entries, err := st.ListDownloads(ctx)
	if err != nil {
		t.Fatalf("ListDownloads failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListDownloads returned %d entries, want 2", len(entries))
	}
	if entries[0].URL != urlB || entries[1].URL != urlA {
		t.Errorf("Eviction order = [%s, %s], want b before a after touching a",
			entries[0].URL, entries[1].URL)
	}
}

func TestVerifyReconciles(t *testing.T) {
	m, st := setupTestManager(t, Config{})
	ctx := context.Background()

	urlGood := "https://cdn.example.com/v/good.mp4"
	urlMissing := "https://cdn.example.com/v/missing.mp4"
	urlCorrupt := "https://cdn.example.com/v/corrupt.mp4"

	for _, url := range []string{urlGood, urlMissing, urlCorrupt} {
		if _, err := m.Store(ctx, url, strings.NewReader("original content")); err != nil {
			t.Fatalf("Store %s failed: %v", url, err)
		}
	}

	if err := os.Remove(filepath.Join(m.Dir(), CacheFilename(urlMissing))); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir(), CacheFilename(urlCorrupt)), []byte("tampered, different length"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	strayPath := filepath.Join(m.Dir(), "feedfacecafe.mp4")
	if err := os.WriteFile(strayPath, []byte("stray"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	spoolPath := filepath.Join(m.Dir(), ".spool-inflight")
	if err := os.WriteFile(spoolPath, []byte("partial"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result, err := m.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Verified != 1 {
		t.Errorf("Verified = %d, want 1", result.Verified)
	}
	if result.RowsDropped != 2 {
		t.Errorf("RowsDropped = %d, want 2", result.RowsDropped)
	}
	if result.FilesRemoved != 2 {
		t.Errorf("FilesRemoved = %d, want 2 (corrupt + stray)", result.FilesRemoved)
	}

	entry, err := st.GetDownload(ctx, urlGood)
	if err != nil {
		t.Fatalf("GetDownload failed: %v", err)
	}
	if !entry.Verified {
		t.Error("Surviving entry not marked verified")
	}

	if _, err := os.Stat(strayPath); !os.IsNotExist(err) {
		t.Error("Stray file survived verification")
	}
	if _, err := os.Stat(spoolPath); err != nil {
		t.Error("In-flight spool file must survive verification")
	}
}

func TestInvalidate(t *testing.T) {
	m, _ := setupTestManager(t, Config{})
	ctx := context.Background()

	url := "https://cdn.example.com/v/bad.mp4"
	if _, err := m.Store(ctx, url, strings.NewReader("bytes")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := m.Invalidate(ctx, url); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	has, err := m.Has(ctx, url)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Invalidated URL still cached")
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), CacheFilename(url))); !os.IsNotExist(err) {
		t.Error("Invalidated file still on disk")
	}

	if err := m.Invalidate(ctx, "https://cdn.example.com/v/unknown.mp4"); err != nil {
		t.Errorf("Invalidate of unknown URL = %v, want nil", err)
	}
}

func TestInvalidateUnverified(t *testing.T) {
	m, _ := setupTestManager(t, Config{})
	ctx := context.Background()

	urlA := "https://cdn.example.com/v/a.mp4"
	urlB := "https://cdn.example.com/v/b.mp4"
	if _, err := m.Store(ctx, urlA, strings.NewReader("a")); err != nil {
		t.Fatalf("Store a failed: %v", err)
	}
	if _, err := m.Store(ctx, urlB, strings.NewReader("b")); err != nil {
		t.Fatalf("Store b failed: %v", err)
	}
	if _, err := m.Verify(ctx); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	urlC := "https://cdn.example.com/v/c.mp4"
	if _, err := m.Store(ctx, urlC, strings.NewReader("c")); err != nil {
		t.Fatalf("Store c failed: %v", err)
	}

	dropped, err := m.InvalidateUnverified(ctx)
	if err != nil {
		t.Fatalf("InvalidateUnverified failed: %v", err)
	}
	if dropped != 1 {
		t.Errorf("Dropped = %d, want 1", dropped)
	}

	for url, want := range map[string]bool{urlA: true, urlB: true, urlC: false} {
		has, err := m.Has(ctx, url)
		if err != nil {
			t.Fatalf("Has(%s) failed: %v", url, err)
		}
		if has != want {
			t.Errorf("Has(%s) = %v, want %v", url, has, want)
		}
	}
}

func TestClear(t *testing.T) {
	m, st := setupTestManager(t, Config{})
	ctx := context.Background()

	if _, err := m.Store(ctx, "https://cdn.example.com/v/a.mp4", strings.NewReader(payload(10))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := m.Store(ctx, "https://cdn.example.com/v/b.mp4", strings.NewReader(payload(20))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir(), "stray.mp4"), []byte(payload(5)), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result, err := m.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if result.FilesDeleted != 3 {
		t.Errorf("FilesDeleted = %d, want 3", result.FilesDeleted)
	}
	if result.BytesFreed != 35 {
		t.Errorf("BytesFreed = %d, want 35", result.BytesFreed)
	}
	if result.RowsCleared != 2 {
		t.Errorf("RowsCleared = %d, want 2", result.RowsCleared)
	}

	entries, err := os.ReadDir(m.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Cache directory has %d entries after clear, want 0", len(entries))
	}

	stats, err := st.GetDownloadStats(ctx)
	if err != nil {
		t.Fatalf("GetDownloadStats failed: %v", err)
	}
	if stats.Files != 0 {
		t.Errorf("Ledger has %d rows after clear, want 0", stats.Files)
	}
}

func TestStats(t *testing.T) {
	cfg := Config{MaxCacheBytes: 1 << 20, MaxFileBytes: 1 << 10}
	m, _ := setupTestManager(t, cfg)
	ctx := context.Background()

	if _, err := m.Store(ctx, "https://cdn.example.com/v/a.mp4", strings.NewReader(payload(10))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := m.Store(ctx, "https://cdn.example.com/v/b.mp4", strings.NewReader(payload(20))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, err := m.Verify(ctx); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := m.Store(ctx, "https://cdn.example.com/v/c.mp4", strings.NewReader(payload(30))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Files != 3 {
		t.Errorf("Files = %d, want 3", stats.Files)
	}
	if stats.TotalBytes != 60 {
		t.Errorf("TotalBytes = %d, want 60", stats.TotalBytes)
	}
	if stats.VerifiedFiles != 2 {
		t.Errorf("VerifiedFiles = %d, want 2", stats.VerifiedFiles)
	}
	if stats.UnverifiedFiles != 1 {
		t.Errorf("UnverifiedFiles = %d, want 1", stats.UnverifiedFiles)
	}
	if stats.MaxCacheBytes != cfg.MaxCacheBytes || stats.MaxFileBytes != cfg.MaxFileBytes {
		t.Errorf("Limits = %d/%d, want %d/%d",
			stats.MaxCacheBytes, stats.MaxFileBytes, cfg.MaxCacheBytes, cfg.MaxFileBytes)
	}
}
