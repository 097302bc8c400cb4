package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"media-index/internal/downloads"
	"media-index/internal/handlers"
	"media-index/internal/index"
	"media-index/internal/logging"
	"media-index/internal/mediatool"
	"media-index/internal/memory"
	"media-index/internal/metrics"
	"media-index/internal/middleware"
	"media-index/internal/startup"
	"media-index/internal/store"
	"media-index/internal/thumbs"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT from container limits before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize store
	dbStart := time.Now()
	st, err := store.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize store: %v", err)
	}
	defer st.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// External media tool; absence degrades hashing and thumbnails but is
	// not fatal
	startup.LogToolInit()
	tool := mediatool.NewFFmpeg()

	var gen *thumbs.Generator
	if config.ThumbnailsEnabled {
		gen = thumbs.New(config.ThumbnailDir, tool)
	}
	startup.LogThumbnailInit(config.ThumbnailsEnabled)

	// Memory monitor gates background workers under pressure
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize index and background workers
	startup.LogIndexInit(config.IndexWorkers, config.IndexQueueSize)
	ix := index.New(st, tool, gen, monitor, index.Config{
		Workers:   config.IndexWorkers,
		QueueSize: config.IndexQueueSize,
	})
	ix.Start()
	startup.LogIndexStarted()

	var watcher *index.Watcher
	if config.WatcherEnabled {
		watcher = index.NewWatcher(config.MediaDir, ix)
		if dirs, err := watcher.Start(); err != nil {
			logging.Warn("File watcher failed to start: %v", err)
			watcher = nil
		} else {
			startup.LogWatcherStarted(dirs)
		}
	}

	ix.PeriodicSweep(config.SweepInterval)

	// Purge expired response-cache rows and refresh DB gauges periodically
	go func() {
		ticker := time.NewTicker(config.CachePurgeInterval)
		for range ticker.C {
			if _, err := st.PurgeExpiredResponses(context.Background()); err != nil {
				logging.Error("Response cache purge failed: %v", err)
			}
			st.UpdateDBMetrics()
		}
	}()

	// Download cache
	var dl *downloads.Manager
	if config.DownloadsEnabled {
		dl, err = downloads.New(config.DownloadDir, st, downloads.Config{
			MaxCacheBytes: config.DownloadCacheBytes,
			MaxFileBytes:  config.DownloadFileBytes,
		})
		if err != nil {
			logging.Warn("Download cache disabled: %v", err)
			dl = nil
		}
	}

	// Initialize handlers
	h := handlers.New(st, ix, dl, config)

	// Setup router
	router := setupRouter(h, dl)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(meteredHandler)

	// Create server. WriteTimeout stays 0 so long media downloads are never
	// cut off mid-stream.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port so the scrape path never competes with
	// media traffic
	if config.MetricsEnabled {
		metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
		go serveMetrics(config.MetricsPort)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, ix, watcher, monitor)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, dl *downloads.Manager) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/browse", h.Browse).Methods("GET")
	api.HandleFunc("/resolve/{path:.*}", h.Resolve).Methods("GET")
	api.HandleFunc("/sweep", h.TriggerSweep).Methods("POST")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// History
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history", h.RecordHistory).Methods("POST")
	api.HandleFunc("/history", h.ClearHistory).Methods("DELETE")
	api.HandleFunc("/history/{id}", h.DeleteHistory).Methods("DELETE")

	// Playlists
	api.HandleFunc("/playlists", h.ListPlaylists).Methods("GET")
	api.HandleFunc("/playlists", h.CreatePlaylist).Methods("POST")
	api.HandleFunc("/playlist/{id}", h.GetPlaylist).Methods("GET")
	api.HandleFunc("/playlist/{id}", h.UpdatePlaylist).Methods("PUT")
	api.HandleFunc("/playlist/{id}", h.DeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlist/{id}/items", h.AddPlaylistItem).Methods("POST")
	api.HandleFunc("/playlist/{id}/items", h.RemovePlaylistItem).Methods("DELETE")
	api.HandleFunc("/playlist/{id}/items", h.MovePlaylistItem).Methods("PUT")

	// Response cache
	api.HandleFunc("/cache/purge", h.PurgeResponseCache).Methods("POST")
	api.HandleFunc("/cache", h.ClearResponseCache).Methods("DELETE")

	// Download cache; routes exist only when the cache came up
	if dl != nil {
		api.HandleFunc("/downloads", h.StoreDownload).Methods("POST")
		api.HandleFunc("/downloads/file", h.GetDownloadFile).Methods("GET")
		api.HandleFunc("/downloads/stats", h.GetDownloadStats).Methods("GET")
		api.HandleFunc("/downloads/verify", h.VerifyDownloads).Methods("POST")
		api.HandleFunc("/downloads/invalidate", h.InvalidateDownloads).Methods("POST")
		api.HandleFunc("/downloads/clear", h.ClearDownloads).Methods("POST")
		r.HandleFunc("/downloads/{name}", h.ServeDownload).Methods("GET")
	}

	// Media files and thumbnails
	r.HandleFunc("/media/{path:.*}", h.ServeMedia).Methods("GET")
	r.HandleFunc("/thumbnails/{name}", h.ServeThumbnail).Methods("GET")

	return r
}

func serveMetrics(port string) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, ix *index.Index, watcher *index.Watcher, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		startup.LogShutdownStep("Stopping file watcher")
		watcher.Stop()
		startup.LogShutdownStepComplete("File watcher stopped")
	}

	startup.LogShutdownStep("Stopping index workers")
	ix.Stop()
	startup.LogShutdownStepComplete("Index workers stopped")

	monitor.Stop()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
