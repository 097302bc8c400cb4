package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_rows_affected",
			Help:    "Rows affected by bulk write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)
)

// Index queue and worker pool metrics
var (
	IndexQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_queue_depth",
			Help: "Number of paths waiting in the background index queue",
		},
	)

	IndexTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_tasks_total",
			Help: "Total number of background index tasks by outcome",
		},
		[]string{"status"}, // "completed", "error", "not_found", "dropped"
	)

	IndexTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_task_duration_seconds",
			Help:    "Background index task duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Record cache metrics
var (
	RecordCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_record_cache_hits_total",
			Help: "Total number of in-memory record cache hits",
		},
	)

	RecordCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_record_cache_misses_total",
			Help: "Total number of in-memory record cache misses",
		},
	)

	RecordResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_record_resolves_total",
			Help: "Total number of record resolutions by path taken",
		},
		[]string{"path"}, // "cached", "computed", "not_found", "error"
	)
)

// Hashing metrics
var (
	HashOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_hash_operations_total",
			Help: "Total number of hash computations",
		},
		[]string{"method", "status"}, // method: "stream", "whole_file"
	)

	HashDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_hash_duration_seconds",
			Help:    "Hash computation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_thumbnail_generations_total",
			Help: "Total number of thumbnail generation attempts by outcome",
		},
		[]string{"status"}, // "generated", "exists", "absent", "error"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ThumbnailExtractionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_thumbnail_extraction_retries_total",
			Help: "Total number of frame extraction retries at earlier offsets",
		},
	)
)

// Library metrics, refreshed by the Collector
var (
	IndexedFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_files",
			Help: "Number of indexed files by type",
		},
		[]string{"type"},
	)

	IndexedDirectoriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_directories",
			Help: "Number of distinct directories containing indexed files",
		},
	)

	HistoryEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_history_entries",
			Help: "Number of history entries",
		},
	)

	PlaylistsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_playlists",
			Help: "Number of playlists",
		},
	)

	PlaylistItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_playlist_items",
			Help: "Number of playlist items across all playlists",
		},
	)
)

// Sweep metrics
var (
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_sweep_runs_total",
			Help: "Total number of sweep runs",
		},
	)

	SweepRecordsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_sweep_records_removed_total",
			Help: "Total number of file records removed by sweeps",
		},
	)

	SweepThumbnailsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_sweep_thumbnails_removed_total",
			Help: "Total number of orphaned thumbnail assets removed by sweeps",
		},
	)

	SweepLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_sweep_last_timestamp",
			Help: "Unix timestamp of the last completed sweep",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Response cache metrics
var (
	ResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	ResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_response_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	ResponseCachePurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_response_cache_purged_total",
			Help: "Total number of expired response cache rows purged",
		},
	)
)

// Download cache metrics
var (
	DownloadCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_download_cache_bytes",
			Help: "Total size of the download cache in bytes",
		},
	)

	DownloadCacheFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_download_cache_files",
			Help: "Number of files in the download cache",
		},
	)

	DownloadCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_download_cache_evictions_total",
			Help: "Total number of files evicted from the download cache",
		},
	)

	DownloadCacheRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_download_cache_rejected_total",
			Help: "Total number of downloads rejected for exceeding the single-file cap",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_memory_usage_ratio",
			Help: "Current heap usage as a ratio of the configured limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_memory_paused",
			Help: "Whether background processing is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_memory_gc_pauses_total",
			Help: "Total number of forced garbage collections under memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_fs_stale_errors_total",
			Help: "Total number of NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_fs_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
