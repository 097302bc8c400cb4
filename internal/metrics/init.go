package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Store query operations ---
	storeOps := []string{
		"initialize_schema", "upsert_file", "get_file_by_path", "list_files_by_directory",
		"list_file_paths", "delete_files", "distinct_hashes", "record_history", "recent_history",
		"delete_history", "clear_history", "create_playlist", "get_playlist", "list_playlists",
		"update_playlist", "delete_playlist", "list_playlist_items", "add_playlist_item",
		"remove_playlist_item", "move_playlist_item", "get_response", "set_response",
		"purge_responses", "clear_responses", "record_download", "get_download", "touch_download",
		"mark_download_verified", "list_downloads", "delete_download", "clear_downloads",
		"download_stats", "stats", "vacuum",
	}
	for _, op := range storeOps {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback", "reorder", "sweep", "maintenance"} {
		DBTransactionDuration.WithLabelValues(t)
	}

	// --- Hash methods ---
	for _, method := range []string{"stream", "whole_file"} {
		HashOperationsTotal.WithLabelValues(method, "success")
		HashOperationsTotal.WithLabelValues(method, "error")
		HashDuration.WithLabelValues(method)
	}

	// --- Index task outcomes ---
	for _, status := range []string{"completed", "error", "not_found", "dropped"} {
		IndexTasksTotal.WithLabelValues(status)
	}

	// --- Record resolution paths ---
	for _, path := range []string{"cached", "computed", "not_found", "error"} {
		RecordResolvesTotal.WithLabelValues(path)
	}

	// --- Thumbnail outcomes ---
	for _, status := range []string{"generated", "exists", "absent", "error"} {
		ThumbnailGenerationsTotal.WithLabelValues(status)
	}

	// --- Watcher event types ---
	for _, event := range []string{"create", "write", "remove", "rename", "chmod", "unknown"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	// --- Filesystem retry metrics (per operation × volume) ---
	volumes := []string{"media", "cache", "database", "unknown"}
	retryOps := []string{"stat", "open", "readdir"}
	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- Library gauges ---
	for _, t := range []string{"video", "image", "other"} {
		IndexedFilesTotal.WithLabelValues(t)
	}
}
