package index

import (
	"context"
	"errors"
	"time"

	"media-index/internal/logging"
	"media-index/internal/mediatool"
	"media-index/internal/memory"
	"media-index/internal/metrics"
	"media-index/internal/store"
	"media-index/internal/thumbs"
	"media-index/internal/workers"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 5 * time.Minute
	defaultWorkerCap = 4
)

// Config controls the in-memory record cache and the background pool.
type Config struct {
	// Workers is the number of background index workers (0 = CPU-derived,
	// capped at 4; each worker drives one external tool process).
	Workers int
	// QueueSize bounds the background task queue (0 = 1024).
	QueueSize int
	// CacheSize bounds the in-memory record cache (0 = 4096).
	CacheSize int
	// CacheTTL expires in-memory records (0 = 5m).
	CacheTTL time.Duration
}

// Index ties the store, hashing engine, and thumbnail generator together:
// it resolves paths to up-to-date file records, serves two-speed directory
// scans, and runs the background warming pool.
type Index struct {
	store   *store.Store
	tool    mediatool.Tool
	thumbs  *thumbs.Generator
	monitor *memory.Monitor

	cache *expirable.LRU[string, store.FileRecord]
	pool  *pool

	stopChan chan struct{}
}

// New creates an Index. The memory monitor may be nil; workers then run
// without backpressure gating.
func New(st *store.Store, tool mediatool.Tool, gen *thumbs.Generator, monitor *memory.Monitor, cfg Config) *Index {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForCPU(defaultWorkerCap)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	ix := &Index{
		store:    st,
		tool:     tool,
		thumbs:   gen,
		monitor:  monitor,
		cache:    expirable.NewLRU[string, store.FileRecord](cfg.CacheSize, nil, cfg.CacheTTL),
		stopChan: make(chan struct{}),
	}
	ix.pool = newPool(cfg.Workers, cfg.QueueSize, ix.processTask)
	return ix
}

// Start launches the background workers.
func (ix *Index) Start() {
	ix.pool.Start()
}

// Stop shuts the index down: background goroutines exit, in-flight tool
// invocations are cancelled.
func (ix *Index) Stop() {
	close(ix.stopChan)
	ix.pool.Stop()
}

// Enqueue schedules path for background indexing. Returns false when the
// queue is full.
func (ix *Index) Enqueue(path string) bool {
	return ix.pool.Submit(path)
}

// Pending reports how many paths are queued or being indexed.
func (ix *Index) Pending() int {
	return ix.pool.Pending()
}

// PeriodicSweep runs Sweep every interval until Stop.
func (ix *Index) PeriodicSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := ix.Sweep(context.Background()); err != nil {
					logging.Error("Periodic sweep failed: %v", err)
				}
			case <-ix.stopChan:
				return
			}
		}
	}()
}

// processTask is the pool callback: resolve one path off the request path.
func (ix *Index) processTask(ctx context.Context, path string) {
	if ix.monitor != nil {
		ix.monitor.WaitIfPaused()
	}

	start := time.Now()
	_, err := ix.Resolve(ctx, path)
	metrics.IndexTaskDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.IndexTasksTotal.WithLabelValues("completed").Inc()
	case errors.Is(err, store.ErrNotFound):
		// File vanished between scan and task; the next sweep cleans up.
		metrics.IndexTasksTotal.WithLabelValues("not_found").Inc()
		logging.Debug("File vanished before background index: %s", path)
	default:
		metrics.IndexTasksTotal.WithLabelValues("error").Inc()
		logging.Warn("Background index failed for %s: %v", path, err)
	}
}
