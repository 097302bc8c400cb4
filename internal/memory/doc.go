// Package memory provides memory management utilities for controlling Go's
// runtime memory usage in containerized environments.
//
// # Overview
//
// When running in Kubernetes or other container orchestrators, Go applications
// can be OOM-killed if they exceed their memory limits. Unlike GOMAXPROCS,
// which Go automatically detects from cgroup CPU limits, GOMEMLIMIT must be
// configured explicitly.
//
// This package provides utilities to:
//   - Configure GOMEMLIMIT from Kubernetes Downward API environment variables
//   - Reserve memory for non-heap allocations (FFmpeg subprocesses, image decode buffers)
//   - Monitor memory usage and provide backpressure signals to the index pool
//
// # Configuration
//
// The simplest way to use this package is to call [ConfigureFromEnv] early in
// your main function, before any significant allocations occur:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ... rest of application
//	}
//
// # Environment Variables
//
// The following environment variables control memory configuration:
//
//   - GOMEMLIMIT: Standard Go environment variable. If set, takes precedence
//     over all other configuration. Accepts values like "400MiB" or "1GiB".
//
//   - MEMORY_LIMIT: Container memory limit in bytes. Typically set via
//     Kubernetes Downward API. This is the raw value from which GOMEMLIMIT
//     is calculated.
//
//   - MEMORY_RATIO: Percentage of MEMORY_LIMIT to use for Go heap, expressed
//     as a decimal between 0.0 and 1.0. Default is 0.85 (85%). Lower this
//     value when many concurrent FFmpeg extractions are expected.
//
// # Kubernetes Configuration
//
// To pass the container memory limit to your application, use the Kubernetes
// Downward API in your deployment manifest:
//
//	spec:
//	  containers:
//	  - name: media-index
//	    resources:
//	      limits:
//	        memory: "512Mi"
//	    env:
//	    - name: MEMORY_LIMIT
//	      valueFrom:
//	        resourceFieldRef:
//	          resource: limits.memory
//	    - name: MEMORY_RATIO
//	      value: "0.75"  # Optional, reserve 25% for FFmpeg, etc.
//
// # Memory Ratio Guidelines
//
// The MEMORY_RATIO determines how much of the container's memory limit is
// allocated to Go's heap. The remaining memory is available for:
//
//   - Child processes (FFmpeg frame extraction and stream hashing)
//   - Decoded frame buffers during thumbnail resizing
//   - SQLite page cache
//   - Goroutine stacks
//   - OS buffers and caches
//
// Because each index worker may hold a decoded video frame in memory while
// resizing it, large worker counts warrant a lower ratio.
//
// # How GOMEMLIMIT Works
//
// GOMEMLIMIT (introduced in Go 1.19) sets a soft memory limit for the Go
// runtime. When heap allocations approach this limit, the garbage collector
// runs more aggressively to try to stay under the limit.
//
// Important notes:
//
//   - GOMEMLIMIT is a soft limit, not a hard limit. Go may temporarily exceed
//     it if the GC cannot free memory fast enough.
//
//   - GOMEMLIMIT only affects Go heap allocations. It does not limit memory
//     used by child processes such as FFmpeg.
//
//   - Setting GOMEMLIMIT too high risks OOM kills. Setting it too low causes
//     excessive GC overhead and reduced performance.
//
// # Memory Monitoring
//
// For runtime memory monitoring and backpressure, use the [Monitor] type:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	// In index pool workers:
//	if !monitor.WaitIfPaused() {
//	    return // shutdown signal received
//	}
//	// ... hash the file, extract a frame
//
// The monitor pauses background indexing when heap usage crosses the
// critical water mark and resumes it once usage falls back below the high
// water mark. Interactive requests are never paused; only the background
// pool consults the monitor.
package memory
