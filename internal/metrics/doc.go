// Package metrics provides Prometheus instrumentation for the media index
// service.
//
// All metrics are prefixed with "media_index_" to avoid naming collisions
// with other applications. Metrics register themselves with the default
// registry via promauto; expose them by mounting promhttp.Handler() on the
// metrics endpoint.
//
// # Metric Categories
//
// ## HTTP
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Store
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBTransactionDuration: Histogram of transaction duration by type
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Indexing
//
//   - IndexQueueDepth: Gauge of paths waiting for background indexing
//   - IndexTasksTotal: Counter of background tasks by outcome
//   - IndexTaskDuration: Histogram of task duration
//   - RecordCacheHits / RecordCacheMisses: in-memory record cache counters
//   - RecordResolvesTotal: Counter of resolutions by path taken
//   - HashOperationsTotal / HashDuration: hash computations by method
//
// ## Thumbnails
//
//   - ThumbnailGenerationsTotal: Counter of attempts by outcome
//   - ThumbnailGenerationDuration: Histogram of generation time
//   - ThumbnailExtractionRetries: Counter of earlier-offset retries
//
// ## Library, sweep, watcher, caches
//
// Gauges for indexed files/directories/history/playlists, sweep counters,
// fsnotify watcher counters, response cache hit/miss/purge counters, and
// download cache size/eviction counters.
//
// ## Memory and filesystem
//
// Memory pressure gauges fed by the memory monitor, and retry counters fed
// by the filesystem package's ESTALE handling.
//
// # Recording Metrics
//
// Import this package and use the exported variables:
//
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/browse", "200").Inc()
//	metrics.DBQueryDuration.WithLabelValues("upsert_file").Observe(0.004)
//	metrics.IndexQueueDepth.Set(12)
//
// # Collector
//
// The [Collector] periodically gathers statistics from a [StatsProvider]
// (implemented by the store) and refreshes the library gauges:
//
//	collector := metrics.NewCollector(st, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Request rate by endpoint:
//
//	sum(rate(media_index_http_requests_total[5m])) by (path)
//
// Record cache hit rate:
//
//	rate(media_index_record_cache_hits_total[5m]) /
//	(rate(media_index_record_cache_hits_total[5m]) + rate(media_index_record_cache_misses_total[5m]))
//
// Store query latency by operation:
//
//	histogram_quantile(0.95, sum(rate(media_index_db_query_duration_seconds_bucket[5m])) by (le, operation))
package metrics
