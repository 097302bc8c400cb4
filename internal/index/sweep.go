package index

import (
	"context"
	"os"
	"time"

	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// SweepResult reports what a sweep removed.
type SweepResult struct {
	RecordsRemoved    int64 `json:"recordsRemoved"`
	ThumbnailsRemoved int   `json:"thumbnailsRemoved"`
}

// Sweep removes records whose path no longer exists on disk, then removes
// thumbnail assets whose hash no longer appears in any record. Only a
// definitive "does not exist" counts as vanished; transient stat errors
// leave the record alone.
func (ix *Index) Sweep(ctx context.Context) (SweepResult, error) {
	metrics.SweepRunsTotal.Inc()

	var result SweepResult

	paths, err := ix.store.ListFilePaths(ctx)
	if err != nil {
		return result, err
	}

	var missing []string
	for _, path := range paths {
		if _, statErr := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig()); os.IsNotExist(statErr) {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		removed, err := ix.store.DeleteFiles(ctx, missing)
		if err != nil {
			return result, err
		}
		result.RecordsRemoved = removed
		metrics.SweepRecordsRemoved.Add(float64(removed))

		for _, path := range missing {
			ix.cache.Remove(path)
		}
	}

	if ix.thumbs != nil {
		keep, err := ix.store.DistinctHashes(ctx)
		if err != nil {
			return result, err
		}
		removed, err := ix.thumbs.RemoveOrphans(keep)
		if err != nil {
			return result, err
		}
		result.ThumbnailsRemoved = removed
		metrics.SweepThumbnailsRemoved.Add(float64(removed))
	}

	metrics.SweepLastTimestamp.Set(float64(time.Now().Unix()))
	logging.Info("Sweep complete: %d records, %d thumbnails removed",
		result.RecordsRemoved, result.ThumbnailsRemoved)

	return result, nil
}
