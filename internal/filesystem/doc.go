/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

This package wraps standard filesystem operations (os.Stat, os.Open, os.ReadDir) with
retry logic specifically designed to handle transient NFS failures, particularly ESTALE
(stale file handle) errors that occur when NFS-mounted media libraries are accessed
during network issues or server-side changes.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Configurable retry attempts (default: 3) and backoff timings
  - Per-volume metric labels via longest-prefix path resolution
  - Fail-fast behavior for all non-ESTALE errors

# Usage

Basic usage with default retry configuration:

	import "media-index/internal/filesystem"

	// Stat a file with automatic NFS retry
	info, err := filesystem.StatWithRetry("/media/photos/img.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    log.Fatal(err)
	}

	// List a directory with automatic NFS retry
	entries, err := filesystem.ReadDirWithRetry("/media/photos", filesystem.DefaultRetryConfig())

Custom retry configuration:

	config := filesystem.RetryConfig{
	    MaxRetries:     5,
	    InitialBackoff: 100 * time.Millisecond,
	    MaxBackoff:     1 * time.Second,
	}
	info, err := filesystem.StatWithRetry(path, config)

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts.

# Volume Labels

Metrics emitted by this package carry a volume label resolved from the path,
so NFS trouble on the media mount is distinguishable from trouble on the
cache or database mounts. Configure the mapping once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media":    cfg.MediaDir,
	    "cache":    cfg.CacheDir,
	    "database": filepath.Dir(cfg.DatabasePath),
	}))

# Integration

The index cache stats files before trusting stored records, the scanner lists
directories during sweeps, and the hasher opens files for whole-file digests.
All three go through this package so a flaky NFS mount degrades to slow
instead of failing.
*/
package filesystem
