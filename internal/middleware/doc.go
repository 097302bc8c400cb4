// Package middleware provides the HTTP middleware chain for the index
// server.
//
// It includes:
//   - Request logging in W3C Extended Log Format with field sanitization
//   - Response compression (gzip) for textual API responses
//   - Prometheus request instrumentation with bounded path cardinality
package middleware
