package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
	"media-index/internal/store"
)

// Resolve returns the up-to-date record for path. A stored record whose
// (size, mtime) tuple matches the file on disk is returned unchanged; this
// is the dominant fast path and spawns no processes. Otherwise the hash,
// duration, and thumbnail are computed and the row upserted. Hashing,
// duration, and thumbnail failures degrade to empty fields and never fail
// the resolve; only a vanished file or a store failure does.
func (ix *Index) Resolve(ctx context.Context, path string) (*store.FileRecord, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			metrics.RecordResolvesTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, path)
		}
		metrics.RecordResolvesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		metrics.RecordResolvesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if rec, ok := ix.validCached(path, info.Size(), info.ModTime().UnixNano()); ok {
		metrics.RecordResolvesTotal.WithLabelValues("cached").Inc()
		return rec, nil
	}

	rec, err := ix.store.GetFileByPath(ctx, path)
	if err == nil && rec.Size == info.Size() && rec.MTimeNanos == info.ModTime().UnixNano() {
		ix.cache.Add(path, *rec)
		metrics.RecordResolvesTotal.WithLabelValues("cached").Inc()
		return rec, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		metrics.RecordResolvesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	rec, err = ix.computeRecord(ctx, path, info)
	if err != nil {
		metrics.RecordResolvesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecordResolvesTotal.WithLabelValues("computed").Inc()
	return rec, nil
}

// Peek returns what is already known about path without computing anything.
// Returns store.ErrNotFound when the path was never indexed. The record may
// be stale; callers wanting freshness use Resolve.
func (ix *Index) Peek(ctx context.Context, path string) (*store.FileRecord, error) {
	if rec, ok := ix.cache.Get(path); ok {
		metrics.RecordCacheHits.Inc()
		return &rec, nil
	}
	metrics.RecordCacheMisses.Inc()

	rec, err := ix.store.GetFileByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	ix.cache.Add(path, *rec)
	return rec, nil
}

// validCached returns the in-memory record for path if it matches the
// current (size, mtime) tuple. A stale entry is evicted.
func (ix *Index) validCached(path string, size, mtimeNanos int64) (*store.FileRecord, bool) {
	rec, ok := ix.cache.Get(path)
	if !ok {
		metrics.RecordCacheMisses.Inc()
		return nil, false
	}
	if rec.Size != size || rec.MTimeNanos != mtimeNanos {
		metrics.RecordCacheMisses.Inc()
		ix.cache.Remove(path)
		return nil, false
	}
	metrics.RecordCacheHits.Inc()
	return &rec, true
}

// computeRecord builds and stores a fresh record for path.
func (ix *Index) computeRecord(ctx context.Context, path string, info os.FileInfo) (*store.FileRecord, error) {
	rec := &store.FileRecord{
		Path:       path,
		Hash:       ix.hashFile(ctx, path),
		Size:       info.Size(),
		MTimeNanos: info.ModTime().UnixNano(),
		Directory:  filepath.Dir(path),
		Filename:   filepath.Base(path),
		Kind:       string(mediatypes.GetFileType(mediatypes.Ext(path))),
	}

	if mediatypes.IsVideoPath(path) {
		if duration, err := ix.tool.ProbeDuration(ctx, path); err == nil {
			rec.Duration = &duration
		} else {
			logging.Debug("Duration probe failed for %s: %v", path, err)
		}

		if rec.Hash != "" && ix.thumbs != nil {
			publicPath, err := ix.thumbs.Generate(ctx, path, rec.Hash)
			if err != nil {
				logging.Warn("Thumbnail generation failed for %s: %v", path, err)
			} else {
				rec.ThumbnailPath = publicPath
			}
		}
	}

	if err := ix.store.UpsertFile(ctx, rec); err != nil {
		return nil, err
	}

	ix.cache.Add(path, *rec)
	return rec, nil
}
