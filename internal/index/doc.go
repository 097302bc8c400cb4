// Package index resolves filesystem paths to cached media records.
//
// The core loop is (size, mtime) validity: a stored record whose tuple
// matches the file on disk is returned without any hashing or process
// spawning, which makes repeated directory scans cheap. When the tuple
// diverges the file is re-hashed (decoded video stream with a whole-file
// fallback), its duration probed, and its thumbnail refreshed.
//
// Directory scans are two-speed: known-good records return immediately,
// unknown files come back as empty-hash placeholders while a bounded
// worker pool warms the cache behind the scenes. A fsnotify watcher feeds
// the same pool as files appear; an explicit sweep removes records for
// vanished paths and orphaned thumbnail assets.
package index
