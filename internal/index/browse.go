package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/store"
)

// Listing is the result of a directory browse. Files with an empty hash are
// placeholders still being indexed in the background; Pending counts them.
type Listing struct {
	Path        string             `json:"path"`
	Directories []string           `json:"directories"`
	Files       []store.FileRecord `json:"files"`
	Pending     int                `json:"pending"`
}

// Browse lists the media files in dir without waiting on slow work. Files
// whose stored record matches the on-disk (size, mtime) tuple come back
// fully populated; the rest appear as placeholder records with an empty
// hash and are queued for background indexing, so the next scan finds them
// warm. Duplicate content is filtered, then the result is sorted.
func (ix *Index) Browse(ctx context.Context, dir string, field mediatypes.SortField, order mediatypes.SortOrder) (*Listing, error) {
	// Paths are identity keys in the store, so the directory must be in
	// canonical form before building child paths from it.
	dir = filepath.Clean(dir)

	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	stored, err := ix.store.ListFilesByDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*store.FileRecord, len(stored))
	for i := range stored {
		byPath[stored[i].Path] = &stored[i]
	}

	listing := &Listing{Path: dir}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			listing.Directories = append(listing.Directories, name)
			continue
		}

		if !mediatypes.IsMediaFile(mediatypes.Ext(name)) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("Failed to stat %s during browse: %v", name, err)
			continue
		}

		path := filepath.Join(dir, name)
		if rec, ok := byPath[path]; ok && rec.Size == info.Size() && rec.MTimeNanos == info.ModTime().UnixNano() {
			ix.cache.Add(path, *rec)
			listing.Files = append(listing.Files, *rec)
			continue
		}

		// New or changed file: return a placeholder now, warm the cache in
		// the background.
		listing.Files = append(listing.Files, store.FileRecord{
			Path:       path,
			Size:       info.Size(),
			MTimeNanos: info.ModTime().UnixNano(),
			Directory:  dir,
			Filename:   name,
			Kind:       string(mediatypes.GetFileType(mediatypes.Ext(name))),
		})
		listing.Pending++
		ix.pool.Submit(path)
	}

	listing.Files = Dedupe(listing.Files)
	sortRecords(listing.Files, field, order)
	sort.Slice(listing.Directories, func(i, j int) bool {
		return strings.ToLower(listing.Directories[i]) < strings.ToLower(listing.Directories[j])
	})

	return listing, nil
}

func sortRecords(records []store.FileRecord, field mediatypes.SortField, order mediatypes.SortOrder) {
	sort.Slice(records, func(i, j int) bool {
		var less bool
		switch field {
		case mediatypes.SortByDate:
			less = records[i].MTimeNanos < records[j].MTimeNanos
		case mediatypes.SortBySize:
			less = records[i].Size < records[j].Size
		case mediatypes.SortByDuration:
			less = durationOf(&records[i]) < durationOf(&records[j])
		default:
			less = strings.ToLower(records[i].Filename) < strings.ToLower(records[j].Filename)
		}
		if order == mediatypes.SortDesc {
			return !less
		}
		return less
	})
}

func durationOf(rec *store.FileRecord) float64 {
	if rec.Duration == nil {
		return 0
	}
	return *rec.Duration
}
