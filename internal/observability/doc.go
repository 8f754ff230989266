// Package observability provides the observability infrastructure for the
// rate limiting service: structured logging, Prometheus metrics, and
// OpenTelemetry tracing.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics for the HTTP surface
//   - tracing: OpenTelemetry tracing middleware
package observability
