package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-index/internal/metrics"
)

// metricsResponseWriter captures the status code and, for file-serving
// paths, the moment the first byte went out.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode      int
	startTime       time.Time
	firstByteTime   time.Time
	headerWritten   bool
	isStreamingPath bool
}

func newMetricsResponseWriter(w http.ResponseWriter, startTime time.Time, isStreamingPath bool) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter:  w,
		statusCode:      http.StatusOK,
		startTime:       startTime,
		isStreamingPath: isStreamingPath,
	}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	if rw.isStreamingPath && rw.firstByteTime.IsZero() {
		rw.firstByteTime = time.Now()
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
		if rw.isStreamingPath && rw.firstByteTime.IsZero() {
			rw.firstByteTime = time.Now()
		}
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// GetDuration returns the duration to record. File transfers run as long
// as the client keeps reading, so media-serving paths measure time to
// first byte; everything else measures total handler time.
func (rw *metricsResponseWriter) GetDuration() time.Duration {
	if rw.isStreamingPath && !rw.firstByteTime.IsZero() {
		return rw.firstByteTime.Sub(rw.startTime)
	}
	return time.Since(rw.startTime)
}

// isStreamingPath reports whether a path serves file content whose
// transfer time depends on the client.
func isStreamingPath(path string) bool {
	return strings.HasPrefix(path, "/media/") || strings.HasPrefix(path, "/downloads/")
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			wrapped := newMetricsResponseWriter(w, start, isStreamingPath(r.URL.Path))

			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(wrapped.GetDuration().Seconds())
		})
	}
}

// wildcardPrefixes are routes that embed a filesystem path or derived
// filename; everything after the prefix is collapsed to keep label
// cardinality bounded.
var wildcardPrefixes = []string{
	"/api/resolve/",
	"/media/",
	"/thumbnails/",
	"/downloads/",
}

// normalizePath reduces a request path to a bounded set of metric labels.
func normalizePath(path string) string {
	for _, prefix := range wildcardPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix + "{path}"
		}
	}

	// Unrecognized deep paths get truncated as a backstop
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 3 {
			parts[i] = "{path}"
			return strings.Join(parts[:i+1], "/")
		}
	}

	return path
}
