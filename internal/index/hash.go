package index

import (
	"context"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatool"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
)

// hashFile fingerprints path. Video files hash the decoded video stream,
// which keeps the fingerprint stable across re-muxing and metadata edits;
// any stream failure falls back to a whole-file digest. Non-video files
// always digest the whole file. Total failure degrades to an empty hash
// rather than failing the record.
func (ix *Index) hashFile(ctx context.Context, path string) string {
	if mediatypes.IsVideoPath(path) {
		start := time.Now()
		hash, err := ix.tool.ComputeStreamHash(ctx, path)
		if err == nil {
			metrics.HashOperationsTotal.WithLabelValues("stream", "success").Inc()
			metrics.HashDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
			return hash
		}
		metrics.HashOperationsTotal.WithLabelValues("stream", "error").Inc()
		logging.Debug("Stream hash failed for %s, falling back to whole-file: %v", path, err)
	}

	start := time.Now()
	hash, err := mediatool.WholeFileDigest(path)
	if err != nil {
		metrics.HashOperationsTotal.WithLabelValues("whole_file", "error").Inc()
		logging.Warn("Whole-file digest failed for %s: %v", path, err)
		return ""
	}
	metrics.HashOperationsTotal.WithLabelValues("whole_file", "success").Inc()
	metrics.HashDuration.WithLabelValues("whole_file").Observe(time.Since(start).Seconds())
	return hash
}
