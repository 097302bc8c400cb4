// Package main provides the entry point for the media index service.
//
// The service is the local metadata layer of a personal media viewer: it
// indexes media files under a mounted directory, caches derived artifacts
// (content hashes, video durations, thumbnails), and persists the viewer's
// usage state (visit history, playlists, cached upstream responses, and a
// bounded download cache).
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or container limits
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Store Initialization: Opens the SQLite database and runs migrations
//  4. Component Initialization:
//     - Media Tool: Verifies ffmpeg/ffprobe availability (degrades gracefully)
//     - Thumbnail Generator: Content-addressed JPEG thumbnails from video frames
//     - Memory Monitor: Pauses background work under memory pressure
//     - Index: Record cache plus background hashing workers
//     - File Watcher: Enqueues newly created media for indexing
//     - Download Cache: LRU-bounded cache of remote media content
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Background Services
//
// Several goroutines run throughout the application lifecycle:
//
//   - Index Workers: Hash and probe files enqueued by scans and the watcher
//   - File Watcher: Follows directory creation and new media files
//   - Periodic Sweep: Drops records for vanished files and orphaned thumbnails
//   - Cache Maintenance: Purges expired response-cache rows, refreshes DB gauges
//   - Memory Monitor: Samples heap usage and gates workers when paused
//
// # Two-Speed Indexing
//
// Directory listings never wait on hashing. A browse returns immediately
// with whatever records are current, emitting placeholder entries for new or
// changed files and queueing them for the background workers; per-file
// resolution computes everything inline. Content hashes cover only the video
// stream, so a remux or metadata edit keeps its identity and its thumbnail.
//
// # Related Packages
//
//   - [media-index/internal/store]: SQLite persistence for all subsystems
//   - [media-index/internal/index]: Record resolution, scanning, sweep, watcher
//   - [media-index/internal/mediatool]: ffmpeg/ffprobe integration
//   - [media-index/internal/thumbs]: Thumbnail generation and orphan cleanup
//   - [media-index/internal/downloads]: Bounded download cache
//   - [media-index/internal/handlers]: HTTP request handlers
//   - [media-index/internal/middleware]: HTTP middleware (logging, metrics, compression)
//   - [media-index/internal/startup]: Configuration and initialization
package main
